package audit

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/ezforhamza/awaz-e-talba-sub000/internal/server/models"
	auditrepo "github.com/ezforhamza/awaz-e-talba-sub000/internal/server/repositories/audit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	auditrepo.Repository
	appended []*models.AuditEntry
	err      error
}

func (f *fakeRepo) Append(_ context.Context, e *models.AuditEntry) error {
	if f.err != nil {
		return f.err
	}
	f.appended = append(f.appended, e)
	return nil
}

type fakePutter struct {
	inputs []*s3.PutObjectInput
	bodies [][]byte
	err    error
}

func (f *fakePutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	b, _ := io.ReadAll(in.Body)
	f.inputs = append(f.inputs, in)
	f.bodies = append(f.bodies, b)
	return &s3.PutObjectOutput{}, nil
}

func sampleEntry() *models.AuditEntry {
	return &models.AuditEntry{
		ID: "a1", Type: models.AuditFraudAttempt, SessionID: "s1", ElectionID: "e1",
		Detail:    map[string]any{"reason": "duplicate_vote"},
		CreatedAt: time.Date(2026, 3, 7, 10, 0, 0, 0, time.UTC),
	}
}

func TestSQLSink(t *testing.T) {
	repo := &fakeRepo{}
	require.NoError(t, NewSQLSink(repo).Write(context.Background(), sampleEntry()))
	assert.Len(t, repo.appended, 1)
}

func TestS3Sink_Write(t *testing.T) {
	p := &fakePutter{}
	s := NewS3Sink(p, "ballots", "")

	require.NoError(t, s.Write(context.Background(), sampleEntry()))
	require.Len(t, p.inputs, 1)

	in := p.inputs[0]
	assert.Equal(t, "ballots", aws.ToString(in.Bucket))
	assert.Equal(t, "audit/2026/03/07/fraud_attempt/a1.json", aws.ToString(in.Key))
	assert.Equal(t, "*", aws.ToString(in.IfNoneMatch))

	var got map[string]any
	require.NoError(t, json.Unmarshal(p.bodies[0], &got))
	assert.Equal(t, "fraud_attempt", got["event_type"])
	assert.Equal(t, "duplicate_vote", got["detail"].(map[string]any)["reason"])
}

func TestS3Sink_Error(t *testing.T) {
	p := &fakePutter{err: errors.New("access denied")}
	err := NewS3Sink(p, "ballots", "x").Write(context.Background(), sampleEntry())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a1")
}

func TestFanOut_WritesAllAndJoinsErrors(t *testing.T) {
	ok := &fakeRepo{}
	bad := &fakeRepo{err: errors.New("db down")}
	p := &fakePutter{}

	err := FanOut{NewSQLSink(bad), nil, NewSQLSink(ok), NewS3Sink(p, "b", "")}.Write(context.Background(), sampleEntry())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
	assert.Len(t, ok.appended, 1)
	assert.Len(t, p.inputs, 1)
}

func TestDiscard(t *testing.T) {
	assert.NoError(t, Discard{}.Write(context.Background(), sampleEntry()))
}
