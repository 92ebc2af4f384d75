// Package open shows a stored conversation in the user's editor.
package open

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/Zuo-Peng/imlog/internal/index"
)

// Conversation writes a plain transcript of conversation id to a temporary
// file and opens it in $EDITOR (less by default) at the reply hitSeq.
func Conversation(ctx context.Context, s *index.Store, id string, hitSeq int) error {
	conv, err := s.Conversation(ctx, id)
	if err != nil {
		return fmt.Errorf("get conversation: %w", err)
	}
	if conv == nil {
		return fmt.Errorf("conversation not found: %s", id)
	}
	replies, err := s.Replies(ctx, id)
	if err != nil {
		return fmt.Errorf("get replies: %w", err)
	}

	f, err := os.CreateTemp("", "imlog-*.txt")
	if err != nil {
		return err
	}
	defer os.Remove(f.Name())

	lineNum, err := Transcript(f, conv, replies, hitSeq)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("write transcript: %w", err)
	}

	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = "less"
	}
	return openInEditor(editor, f.Name(), lineNum)
}

// Transcript writes one line per reply and returns the 1-based line number
// of reply hitSeq, or 1 when there is no such reply.
func Transcript(w io.Writer, conv *index.ConversationRow, replies []index.ReplyRow, hitSeq int) (int, error) {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%s/%s <-> %s/%s, %s\n\n",
		conv.LocalService, conv.LocalAccount, conv.RemoteService, conv.RemoteAccount,
		conv.StartedAt.Format("2006-01-02 15:04:05 MST"))
	line := 3

	hitLine := 1
	for _, r := range replies {
		if r.Seq == hitSeq {
			hitLine = line
		}
		who := r.Speaker
		if who == "" {
			who = "*"
		}
		// continuation lines are indented so each reply stays one block
		text := strings.ReplaceAll(r.Text, "\n", "\n    ")
		fmt.Fprintf(bw, "[%s] %s: %s\n", r.Time.Format("15:04:05"), who, text)
		line += strings.Count(text, "\n") + 1
	}
	return hitLine, bw.Flush()
}

func openInEditor(editor, filePath string, lineNum int) error {
	var cmd *exec.Cmd

	switch {
	case strings.Contains(editor, "vim") || strings.Contains(editor, "nvim"):
		cmd = exec.Command(editor, fmt.Sprintf("+%d", lineNum), filePath)
	case strings.Contains(editor, "code"):
		cmd = exec.Command(editor, "--wait", "--goto", filePath+":"+strconv.Itoa(lineNum))
	case strings.Contains(editor, "less"):
		cmd = exec.Command(editor, "+"+strconv.Itoa(lineNum), filePath)
	default:
		cmd = exec.Command(editor, filePath)
	}

	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}
