package model

// 流式帧类型
const (
	FrameSession  = "session"
	FrameMetadata = "metadata"
	FrameContent  = "content"
	FrameState    = "state"
	FrameError    = "error"
	FrameDone     = "done"
)

// 进度状态
const (
	StateSearching  = "searching"
	StateGenerating = "generating"
	StateSaving     = "saving"
)

// DoneSentinel 是流结束时写出的字面量。
const DoneSentinel = "[DONE]"

// Frame 是一轮对话中推送给调用方的一个事件。
type Frame struct {
	Type      string      `json:"type"`
	SessionID string      `json:"sessionId,omitempty"`
	Sources   []SourceRef `json:"sources,omitempty"`
	ToolsUsed []ToolCall  `json:"toolsUsed,omitempty"`
	Content   string      `json:"content,omitempty"`
	StateType string      `json:"stateType,omitempty"`
	Message   string      `json:"message,omitempty"`
}
