package model

// SearchResult 是向量/混合/图检索返回的一个片段，仅用于上下文组装，不单独持久化。
type SearchResult struct {
	ID         string            `json:"id"`
	DocumentID string            `json:"documentId"`
	Title      string            `json:"title"`
	Content    string            `json:"content"`
	Score      float64           `json:"score"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// SourceRef 是附在助手消息上的出处信息。
type SourceRef struct {
	DocumentID string  `json:"documentId"`
	Title      string  `json:"title"`
	Score      float64 `json:"score"`
	Origin     string  `json:"origin"`
}

// ToolCall 记录一次工具调用的名称和参数，作为出处元数据返回给调用方。
type ToolCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

// EsDocument 是存储在 Elasticsearch knowledge_base 索引中的片段。
type EsDocument struct {
	VectorID     string    `json:"vector_id"`
	DocumentID   string    `json:"document_id"`
	Title        string    `json:"title"`
	ChunkID      int       `json:"chunk_id"`
	TextContent  string    `json:"text_content"`
	Vector       []float32 `json:"vector"`
	ModelVersion string    `json:"model_version"`
}

// GraphFact 是存储在 knowledge_graph 索引中的一条三元组事实。
type GraphFact struct {
	FactID    string `json:"fact_id"`
	Subject   string `json:"subject"`
	Predicate string `json:"predicate"`
	Object    string `json:"object"`
	Fact      string `json:"fact"`
	Source    string `json:"source"`
}
