package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"capture-scheduler-go/internal/models"

	"go.uber.org/zap"
)

func scanArtifact(row rowScanner) (*models.PhotoArtifact, error) {
	var artifact models.PhotoArtifact
	var storageKey sql.NullString
	var consentVersion sql.NullInt64
	var tier string
	err := row.Scan(&artifact.Id, &artifact.SessionId, &artifact.UserId, &storageKey, &tier,
		&artifact.SizeBytes, &artifact.Checksum, &artifact.CapturedAt, &artifact.IsValid,
		&artifact.VerdictNotes, &consentVersion, &artifact.Monetizable)
	if err != nil {
		return nil, err
	}
	artifact.StorageKey = nullStringPtr(storageKey)
	artifact.StorageTier = models.StorageTier(tier)
	artifact.ConsentVersion = nullInt64Ptr(consentVersion)
	artifact.CapturedAt = artifact.CapturedAt.UTC()
	return &artifact, nil
}

// SaveArtifact writes an artifact once; a second save for the same session fails
func (s *Service) SaveArtifact(ctx context.Context, artifact *models.PhotoArtifact) error {
	_, err := s.db.ExecContext(ctx, queryInsertArtifact,
		artifact.Id, artifact.SessionId, artifact.UserId, artifact.StorageKey, string(artifact.StorageTier),
		artifact.SizeBytes, artifact.Checksum, artifact.CapturedAt.UTC(), artifact.IsValid,
		artifact.VerdictNotes, artifact.ConsentVersion, artifact.Monetizable)
	if err != nil {
		return fmt.Errorf("failed to insert photo artifact: %w", err)
	}

	zap.L().Debug("Photo artifact saved",
		zap.String("photo_id", artifact.Id),
		zap.String("session_id", artifact.SessionId),
		zap.String("tier", string(artifact.StorageTier)),
		zap.Bool("monetizable", artifact.Monetizable))
	return nil
}

// GetArtifact returns nil when the artifact does not exist
func (s *Service) GetArtifact(ctx context.Context, id string) (*models.PhotoArtifact, error) {
	artifact, err := scanArtifact(s.db.QueryRowContext(ctx, queryGetArtifact, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get photo artifact: %w", err)
	}
	return artifact, nil
}

func (s *Service) ListArtifactsByUser(ctx context.Context, userId string, limit, offset int) ([]models.PhotoArtifact, error) {
	rows, err := s.db.QueryContext(ctx, queryGetArtifactsByUser, userId, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list photo artifacts: %w", err)
	}
	defer closeRows(rows)

	var artifacts []models.PhotoArtifact
	for rows.Next() {
		artifact, err := scanArtifact(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan photo artifact: %w", err)
		}
		artifacts = append(artifacts, *artifact)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating photo artifact rows: %w", err)
	}
	return artifacts, nil
}
