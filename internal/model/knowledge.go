package model

// KnowledgeChunk 对应于数据库中的 knowledge_chunks 表。
// 它是写入 Elasticsearch 的每个片段在关系库中的镜像，便于按文档重建或删除索引。
type KnowledgeChunk struct {
	ID           uint   `gorm:"primaryKey;autoIncrement"`
	DocumentID   string `gorm:"type:varchar(64);not null;index"`
	Title        string `gorm:"type:varchar(255)"`
	ChunkID      int    `gorm:"not null"`
	TextContent  string `gorm:"type:text"`
	ModelVersion string `gorm:"type:varchar(50)"`
}

func (KnowledgeChunk) TableName() string {
	return "knowledge_chunks"
}
