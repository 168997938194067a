// Package store persists scored segments, call summaries and alerts.
package store

import (
	"bytes"
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/supabase-community/supabase-go"

	"github.com/sulisumenpeter/shield-voice-aware/internal/models"
)

const (
	tableTranscripts = "transcripts"
	tableCalls       = "calls"
	tableAlerts      = "alerts"
)

type Config struct {
	URL            string
	ServiceRoleKey string
	Bucket         string
}

// Configured reports whether both URL and key are present.
func (c Config) Configured() bool { return c.URL != "" && c.ServiceRoleKey != "" }

// Supabase writes records through PostgREST and chunk audio through Storage.
type Supabase struct {
	client *supabase.Client
	bucket string
}

type transcriptRow struct {
	UserID    string `json:"user_id"`
	CallID    string `json:"call_id"`
	Speaker   string `json:"speaker"`
	Content   string `json:"content"`
	Label     string `json:"label"`
	Rationale string `json:"rationale"`
}

func New(cfg Config) (*Supabase, error) {
	client, err := supabase.NewClient(cfg.URL, cfg.ServiceRoleKey, &supabase.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("create supabase client: %w", err)
	}
	return &Supabase{client: client, bucket: cfg.Bucket}, nil
}

func (s *Supabase) RecordSegment(ctx context.Context, seg models.Segment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	row := transcriptRow{
		UserID:    seg.UserID,
		CallID:    seg.CallID,
		Speaker:   seg.Speaker,
		Content:   seg.Text,
		Label:     seg.Label,
		Rationale: seg.Rationale,
	}
	if _, _, err := s.client.From(tableTranscripts).Insert(row, false, "", "minimal", "").Execute(); err != nil {
		return fmt.Errorf("insert transcript: %w", err)
	}
	return nil
}

func (s *Supabase) UpsertCall(ctx context.Context, call models.Call) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, _, err := s.client.From(tableCalls).Upsert(call, "id", "minimal", "").Execute(); err != nil {
		return fmt.Errorf("upsert call: %w", err)
	}
	return nil
}

func (s *Supabase) RecordAlert(ctx context.Context, alert models.Alert) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, _, err := s.client.From(tableAlerts).Insert(alert, false, "", "minimal", "").Execute(); err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

// Archive uploads a chunk WAV to {callID}/{chunk}-{uuid}.wav in the bucket.
// chunk is the flush number, carried as Segment.Chunk on scored segments.
func (s *Supabase) Archive(ctx context.Context, callID string, chunk int, wav []byte) error {
	if s.bucket == "" {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	key := ArchiveKey(callID, chunk)
	if _, err := s.client.Storage.UploadFile(s.bucket, key, bytes.NewReader(wav)); err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	return nil
}

func ArchiveKey(callID string, chunk int) string {
	return fmt.Sprintf("%s/%d-%s.wav", callID, chunk, uuid.NewString())
}
