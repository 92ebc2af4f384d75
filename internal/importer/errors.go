package importer

import "fmt"

// AnalyzeError reports a file that could not be segmented. Conversation is
// the ordinal of the conversation being read when the failure happened.
type AnalyzeError struct {
	Path         string
	Conversation int
	Err          error
}

func (e *AnalyzeError) Error() string {
	return fmt.Sprintf("analyze %s (conversation %d): %v", e.Path, e.Conversation, e.Err)
}

func (e *AnalyzeError) Unwrap() error { return e.Err }

// ConvertError reports a conversation that could not be written to the
// archive graph.
type ConvertError struct {
	Path         string
	Conversation int
	Err          error
}

func (e *ConvertError) Error() string {
	return fmt.Sprintf("import %s (conversation %d): %v", e.Path, e.Conversation, e.Err)
}

func (e *ConvertError) Unwrap() error { return e.Err }
