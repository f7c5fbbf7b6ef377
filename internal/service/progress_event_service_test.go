package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-skills-api/internal/progression"
	"github.com/noah-isme/gema-skills-api/internal/repository"
)

func TestProgressEventServicePersistsAndBroadcasts(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	defer server.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: server.Addr()})
	defer redisClient.Close()

	ctx := context.Background()
	subscription := redisClient.Subscribe(ctx, "gema:skills:progress")
	defer subscription.Close()
	_, err = subscription.Receive(ctx)
	require.NoError(t, err)

	db := setupServiceDB(t)
	svc := NewProgressEventService(repository.NewProgressEventRepository(db), redisClient, "gema:skills", nil, testLogger())

	score := 80
	occurredAt := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	published, err := svc.Publish(ctx, progression.Event{
		Type:         progression.EventQuizAttempted,
		EnrollmentID: 5,
		CourseID:     3,
		StudentID:    1,
		Round:        2,
		Score:        &score,
		Passed:       true,
		OccurredAt:   occurredAt,
	}, Actor{ID: 1, Role: " Student "})
	require.NoError(t, err)
	require.NotEmpty(t, published.EventID)
	require.Equal(t, "student", published.ActorRole)
	require.EqualValues(t, 80, published.Metadata["score"])

	select {
	case message := <-subscription.Channel():
		var envelope progressEnvelope
		require.NoError(t, json.Unmarshal([]byte(message.Payload), &envelope))
		require.Equal(t, published.EventID, envelope.Event.EventID)
		require.Equal(t, "quiz.attempted", envelope.Event.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("expected progress event on redis channel")
	}

	events, err := svc.List(ctx, 5, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.True(t, events[0].OccurredAt.Equal(occurredAt))
}

func TestProgressEventServiceWithoutBrokers(t *testing.T) {
	db := setupServiceDB(t)
	svc := NewProgressEventService(repository.NewProgressEventRepository(db), nil, "", nil, testLogger())

	_, err := svc.Publish(context.Background(), progression.Event{Type: progression.EventEnrollmentCreated, EnrollmentID: 1, CourseID: 1, StudentID: 1}, Actor{ID: 1, Role: RoleStudent})
	require.NoError(t, err)

	_, err = svc.List(context.Background(), 0, 10)
	require.Error(t, err)
}
