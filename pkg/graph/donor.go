package graph

import (
	"context"
	"fmt"

	"github.com/Gobusters/ectologger"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/itaisigler-a11y/school-in-the-square-fundraising-sub002/pkg/models"
	"github.com/itaisigler-a11y/school-in-the-square-fundraising-sub002/pkg/tracing"
)

// Relationship type constants for donor edges
const (
	RelHouseholdMember = "HOUSEHOLD_MEMBER"
	RelParentOf        = "PARENT_OF"
	RelWorksWith       = "WORKS_WITH"
	RelRefers          = "REFERS"
)

var relationshipTypes = map[string]bool{
	RelHouseholdMember: true,
	RelParentOf:        true,
	RelWorksWith:       true,
	RelRefers:          true,
}

// DonorService maintains donor nodes and their relationships
type DonorService struct {
	client *Client
	logger ectologger.Logger
}

// NewDonorService creates a donor graph service
func NewDonorService(client *Client, logger ectologger.Logger) *DonorService {
	return &DonorService{client: client, logger: logger}
}

// Upsert creates or updates a donor node
func (s *DonorService) Upsert(ctx context.Context, donor *models.Donor) error {
	ctx, span := tracing.StartSpan(ctx, "graph.DonorService.Upsert")
	defer span.End()

	log := s.logger.WithContext(ctx).WithFields(map[string]any{
		"donor_id":  donor.ID,
		"tenant_id": donor.TenantID,
	})

	props := map[string]any{
		"id":         donor.ID,
		"tenant_id":  donor.TenantID,
		"name":       donor.FullName(),
		"donor_type": donor.DonorType,
		"city":       donor.City,
		"zip":        donor.Zip,
		"created_at": donor.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		"updated_at": donor.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z"),
	}
	if donor.AlumniYear != nil {
		props["alumni_year"] = *donor.AlumniYear
	}

	cypher := `
		MERGE (d:Donor {id: $id, tenant_id: $tenant_id})
		SET d = $props
		RETURN d
	`

	_, err := s.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, cypher, map[string]any{
			"id":        donor.ID,
			"tenant_id": donor.TenantID,
			"props":     props,
		})
		if err != nil {
			return nil, err
		}
		return result.Consume(ctx)
	})
	if err != nil {
		log.WithError(err).Error("Failed to upsert donor in graph")
		return fmt.Errorf("failed to upsert donor in graph: %w", err)
	}

	log.Debug("Upserted donor in graph")
	return nil
}

// Delete soft-deletes a donor node by stamping deleted_at
func (s *DonorService) Delete(ctx context.Context, tenantID, donorID string) error {
	ctx, span := tracing.StartSpan(ctx, "graph.DonorService.Delete")
	defer span.End()

	cypher := `
		MATCH (d:Donor {id: $id, tenant_id: $tenant_id})
		SET d.deleted_at = datetime()
		RETURN d
	`

	_, err := s.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, cypher, map[string]any{
			"id":        donorID,
			"tenant_id": tenantID,
		})
		if err != nil {
			return nil, err
		}
		return result.Consume(ctx)
	})
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).Error("Failed to delete donor in graph")
		return fmt.Errorf("failed to delete donor in graph: %w", err)
	}
	return nil
}

// Relate creates a typed edge between two donors. The edge is merged, so
// relating the same pair twice is a no-op.
func (s *DonorService) Relate(ctx context.Context, tenantID, fromID, toID, relType string) error {
	ctx, span := tracing.StartSpan(ctx, "graph.DonorService.Relate")
	defer span.End()

	if !relationshipTypes[relType] {
		return fmt.Errorf("unknown relationship type %q", relType)
	}

	cypher := fmt.Sprintf(`
		MATCH (a:Donor {id: $from_id, tenant_id: $tenant_id})
		MATCH (b:Donor {id: $to_id, tenant_id: $tenant_id})
		MERGE (a)-[r:%s]->(b)
		SET r.created_at = coalesce(r.created_at, datetime())
		RETURN r
	`, relType)

	_, err := s.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, cypher, map[string]any{
			"from_id":   fromID,
			"to_id":     toID,
			"tenant_id": tenantID,
		})
		if err != nil {
			return nil, err
		}
		return result.Consume(ctx)
	})
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).Error("Failed to relate donors in graph")
		return fmt.Errorf("failed to relate donors in graph: %w", err)
	}
	return nil
}

// MergeInto marks a confirmed duplicate node as merged into the survivor
// and detaches its edges so relationship queries stop traversing it
func (s *DonorService) MergeInto(ctx context.Context, tenantID, duplicateID, survivorID string) error {
	ctx, span := tracing.StartSpan(ctx, "graph.DonorService.MergeInto")
	defer span.End()

	cypher := `
		MATCH (dup:Donor {id: $dup_id, tenant_id: $tenant_id})
		SET dup.merged_into = $keep_id, dup.deleted_at = datetime()
		WITH dup
		OPTIONAL MATCH (dup)-[r]-()
		DELETE r
		RETURN dup
	`

	_, err := s.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, cypher, map[string]any{
			"dup_id":    duplicateID,
			"keep_id":   survivorID,
			"tenant_id": tenantID,
		})
		if err != nil {
			return nil, err
		}
		return result.Consume(ctx)
	})
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).Error("Failed to merge donor nodes in graph")
		return fmt.Errorf("failed to merge donor nodes in graph: %w", err)
	}
	return nil
}

// RelatedDonor is one edge endpoint returned by Related
type RelatedDonor struct {
	DonorID      string `json:"donor_id"`
	Name         string `json:"name"`
	Relationship string `json:"relationship"`
}

// Related returns the donors directly connected to the given donor
func (s *DonorService) Related(ctx context.Context, tenantID, donorID string) ([]RelatedDonor, error) {
	ctx, span := tracing.StartSpan(ctx, "graph.DonorService.Related")
	defer span.End()

	cypher := `
		MATCH (d:Donor {id: $id, tenant_id: $tenant_id})-[r]-(other:Donor)
		WHERE other.deleted_at IS NULL
		RETURN other.id AS id, other.name AS name, type(r) AS relationship
		ORDER BY other.name
	`

	result, err := s.client.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, cypher, map[string]any{
			"id":        donorID,
			"tenant_id": tenantID,
		})
		if err != nil {
			return nil, err
		}

		var related []RelatedDonor
		for result.Next(ctx) {
			record := result.Record()
			entry := RelatedDonor{}
			if v, ok := record.Get("id"); ok {
				entry.DonorID, _ = v.(string)
			}
			if v, ok := record.Get("name"); ok {
				entry.Name, _ = v.(string)
			}
			if v, ok := record.Get("relationship"); ok {
				entry.Relationship, _ = v.(string)
			}
			related = append(related, entry)
		}
		return related, result.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load related donors: %w", err)
	}

	related, _ := result.([]RelatedDonor)
	return related, nil
}
