package service

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"crm-agent-go/pkg/errx"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIngestKnowledge(t *testing.T) {
	producer := &fakeProducer{}
	svc := NewAdminService(producer, "knowledge")

	task, err := svc.IngestKnowledge(context.Background(), IngestRequest{ObjectName: " guides/life.pdf "})
	require.NoError(t, err)
	assert.NotEmpty(t, task.DocumentID)
	assert.Equal(t, "guides/life.pdf", task.ObjectName)
	assert.Equal(t, "guides/life.pdf", task.Title)
	assert.Equal(t, "knowledge", task.Bucket)
	require.Len(t, producer.produced, 1)
	assert.Equal(t, *task, producer.produced[0])
}

func TestIngestKnowledge_KeepsDocumentID(t *testing.T) {
	producer := &fakeProducer{}
	svc := NewAdminService(producer, "knowledge")
	task, err := svc.IngestKnowledge(context.Background(), IngestRequest{DocumentID: "doc-1", Title: "Life Guide", ObjectName: "life.pdf"})
	require.NoError(t, err)
	assert.Equal(t, "doc-1", task.DocumentID)
	assert.Equal(t, "Life Guide", task.Title)
}

func TestIngestKnowledge_Errors(t *testing.T) {
	svc := NewAdminService(&fakeProducer{}, "knowledge")
	_, err := svc.IngestKnowledge(context.Background(), IngestRequest{})
	status, _ := errx.StatusOf(err)
	assert.Equal(t, http.StatusBadRequest, status)

	brokerDown := errors.New("broker down")
	svc = NewAdminService(&fakeProducer{err: brokerDown}, "knowledge")
	_, err = svc.IngestKnowledge(context.Background(), IngestRequest{ObjectName: "a.pdf"})
	require.ErrorIs(t, err, brokerDown)
}
