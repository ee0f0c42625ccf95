// Package tasks defines the structure for tasks that are sent to Kafka.
package tasks

// KnowledgeIngestTask asks the pipeline to index one knowledge-base object stored in MinIO.
type KnowledgeIngestTask struct {
	DocumentID string `json:"document_id"`
	Title      string `json:"title"`
	ObjectName string `json:"object_name"`
	Bucket     string `json:"bucket"`
}
