package segmenter

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
)

const (
	// terminationTimeout is how long FFmpeg gets after SIGTERM before it is killed
	terminationTimeout = 5 * time.Second
	stderrTailLines    = 5
)

// ErrFFmpegFailed wraps a non-zero FFmpeg exit.
var ErrFFmpegFailed = errors.New("ffmpeg failed")

// runner executes a built command. Replaced in tests.
type runner func(ctx context.Context, binary string, cmd *Command, log zerolog.Logger) error

// runFFmpeg runs cmd to completion. Cancelling ctx sends SIGTERM and kills
// the process if it has not exited after terminationTimeout.
func runFFmpeg(ctx context.Context, binary string, cmd *Command, log zerolog.Logger) error {
	if cmd == nil || len(cmd.Args) == 0 {
		return errors.New("invalid FFmpeg command")
	}

	execCmd := exec.CommandContext(ctx, binary, cmd.Args...)
	execCmd.Cancel = func() error {
		return execCmd.Process.Signal(syscall.SIGTERM)
	}
	execCmd.WaitDelay = terminationTimeout

	stderr, err := execCmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	startTime := time.Now()
	if err := execCmd.Start(); err != nil {
		return fmt.Errorf("failed to start FFmpeg: %w", err)
	}
	pid := execCmd.Process.Pid

	tail := &lineTail{max: stderrTailLines}
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		captureFFmpegOutput(pid, stderr, tail, log)
	}()

	wg.Wait()
	err = execCmd.Wait()

	log.Debug().
		Int("pid", pid).
		Int64("duration_ms", time.Since(startTime).Milliseconds()).
		Bool("ok", err == nil).
		Msg("FFmpeg process finished")

	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %w", ErrFFmpegFailed, ctx.Err())
		}
		return fmt.Errorf("%w: %w: %s", ErrFFmpegFailed, err, tail.String())
	}
	return nil
}

// captureFFmpegOutput logs FFmpeg output and keeps its last lines.
func captureFFmpegOutput(pid int, reader io.Reader, tail *lineTail, log zerolog.Logger) {
	scanner := bufio.NewScanner(reader)
	for scanner.Scan() {
		line := scanner.Text()
		tail.add(line)
		if containsError(line) {
			log.Warn().Int("ffmpeg_pid", pid).Str("output", line).Msg("FFmpeg error")
		} else {
			log.Debug().Int("ffmpeg_pid", pid).Str("output", line).Msg("FFmpeg output")
		}
	}
	if err := scanner.Err(); err != nil {
		log.Warn().Err(err).Int("ffmpeg_pid", pid).Msg("Error reading FFmpeg output")
	}
}

var errorKeywords = []string{"error", "failed", "fatal", "invalid"}

// containsError checks if a log line contains error indicators
func containsError(line string) bool {
	lower := strings.ToLower(line)
	for _, keyword := range errorKeywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}

type lineTail struct {
	mu    sync.Mutex
	max   int
	lines []string
}

func (t *lineTail) add(line string) {
	if strings.TrimSpace(line) == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lines = append(t.lines, line)
	if len(t.lines) > t.max {
		t.lines = t.lines[1:]
	}
}

func (t *lineTail) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.Join(t.lines, "; ")
}
