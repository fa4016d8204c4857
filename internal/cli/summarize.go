package cli

import (
	"bufio"
	"encoding/json"
	"os"
	"os/exec"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/majiayu000/remem/internal/capture"
	"github.com/majiayu000/remem/internal/summarize"
)

const maxAssistantMessageBytes = 12000

// summarizeHookInput extends hookInput with the Stop hook's extra fields.
type summarizeHookInput struct {
	hookInput
	TranscriptPath        string `json:"transcript_path"`
	LastAssistantMessage  string `json:"last_assistant_message"`
}

// newSummarizeCmd implements the Stop hook dispatcher: run the three-gate
// check and — on a pass — spawn a detached `summarize-worker` process
// before returning. It must return in milliseconds; the worker distills the
// pending observations and does the actual LM work.
func newSummarizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:    "summarize",
		Short:  "Stop hook: gate-check and dispatch the background summarizer",
		Hidden: true,
		Run: func(cmd *cobra.Command, args []string) {
			e, err := openEnv()
			if err != nil {
				os.Exit(0)
			}

			var in summarizeHookInput
			dec := json.NewDecoder(os.Stdin)
			_ = dec.Decode(&in)

			project := capture.ProjectFromCWD(in.CWD)

			message := in.LastAssistantMessage
			if message == "" && in.TranscriptPath != "" {
				message = extractLastAssistantMessage(in.TranscriptPath)
			}
			if message == "" {
				e.logger.Info("summarize: no assistant message, skipping")
				exitHookOK(e, nil)
				return
			}
			if len(message) > maxAssistantMessageBytes {
				message = message[:maxAssistantMessageBytes]
			}

			result, err := summarize.CheckGates(e.store, in.SessionID, project, message, e.cfg.MinPending, e.cfg.CooldownSecs)
			if err != nil {
				e.logger.Error("summarize: gate check failed", "err", err)
				exitHookOK(e, err)
				return
			}
			if !result.Passed {
				e.logger.Info("summarize: gate rejected", "reason", result.Reason)
				exitHookOK(e, nil)
				return
			}

			if err := spawnSummarizeWorker(in.SessionID, project, message); err != nil {
				e.logger.Error("summarize: spawn worker failed", "err", err)
			} else {
				e.logger.Info("summarize: dispatched worker", "project", project)
			}

			exitHookOK(e, nil)
		},
	}
}

// spawnSummarizeWorker re-execs this binary as `summarize-worker`, detached
// from the hook's process group so it survives the hook's exit. The
// assistant message is passed on the worker's stdin to avoid argv limits.
func spawnSummarizeWorker(sessionID, project, message string) error {
	self, err := os.Executable()
	if err != nil {
		return err
	}

	c := exec.Command(self, "summarize-worker", "--session-id", sessionID, "--project", project)
	c.Stdin = strings.NewReader(message)
	c.Stdout = nil
	c.Stderr = nil
	c.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := c.Start(); err != nil {
		return err
	}
	return c.Process.Release()
}

func extractLastAssistantMessage(transcriptPath string) string {
	f, err := os.Open(transcriptPath)
	if err != nil {
		return ""
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}

	for i := len(lines) - 1; i >= 0; i-- {
		var entry struct {
			Type    string `json:"type"`
			Message struct {
				Content []struct {
					Type string `json:"type"`
					Text string `json:"text"`
				} `json:"content"`
			} `json:"message"`
		}
		if err := json.Unmarshal([]byte(lines[i]), &entry); err != nil {
			continue
		}
		if entry.Type != "assistant" {
			continue
		}
		var parts []string
		for _, c := range entry.Message.Content {
			if c.Type == "text" && c.Text != "" {
				parts = append(parts, c.Text)
			}
		}
		if len(parts) > 0 {
			return strings.Join(parts, "\n")
		}
	}
	return ""
}
