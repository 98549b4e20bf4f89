// exec.go supervises one fetcher subprocess attempt.
package download

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"regexp"
	"strconv"
	"time"

	"github.com/modelplane/modelplane/internal/logger"
)

var (
	// errCancelled reports that the user's cancel signal stopped the
	// attempt. The caller emits the cancelled terminal event.
	errCancelled = errors.New("cancelled")

	// errClientGone reports that the event consumer disappeared. The
	// stream just ends; nobody is listening for a terminal event.
	errClientGone = errors.New("event consumer gone")
)

// percentPattern matches wget's and curl's percent indicators, e.g. "42%"
// or "99.7%".
var percentPattern = regexp.MustCompile(`(\d+(?:\.\d+)?)%`)

// execute runs one fetcher attempt and streams progress events.
//
// It spawns the method's fetcher with stderr piped, parses percent
// indicators line by line, and emits a progress event whenever the value
// moves by at least one point. Cancellation and consumer disappearance
// are observed between lines; either kills the process and waits for it,
// so no subprocess outlives the attempt. A nil return means the fetcher
// exited zero and the temp file holds the complete artifact.
func (m *Manager) execute(
	ctx context.Context,
	sess *session,
	kind, url, tempFile string,
	sizeGB float64,
	emit func(Event) bool,
) error {
	argv, err := buildCommand(kind, url, tempFile)
	if err != nil {
		return err
	}

	logger.Info("Executing: %v", argv)

	cmd := exec.Command(argv[0], argv[1:]...)
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to open stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", kind, err)
	}

	// Line reader. The channel closes on EOF, which is also how natural
	// process exit surfaces to the supervision loop. A read failure (an
	// oversized line that blows the scanner's buffer) is reported through
	// readErr; the fetcher is then still alive and possibly blocked
	// writing into the full pipe.
	lines := make(chan string, 64)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(stderr)
		scanner.Buffer(make([]byte, 0, 64*1024), 256*1024)
		scanner.Split(scanProgressLines)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		if err := scanner.Err(); err != nil {
			readErr <- err
		}
	}()

	kill := func() {
		cmd.Process.Kill()
		for range lines {
			// Drain until the reader stops so Wait can reap.
		}
		io.Copy(io.Discard, stderr)
		cmd.Wait()
	}

	lastProgress := 0
	start := time.Now()

supervise:
	for {
		select {
		case <-sess.cancel:
			kill()
			return errCancelled

		case <-ctx.Done():
			kill()
			return errClientGone

		case line, ok := <-lines:
			if !ok {
				break supervise
			}

			progress, found := parsePercent(line)
			if !found || abs(progress-lastProgress) < 1 {
				continue
			}

			sess.setProgress(progress)
			speed, eta := transferEstimates(progress, sizeGB, time.Since(start))

			if !emit(Event{
				Type:       EventProgress,
				Progress:   progress,
				SpeedMbps:  speed,
				EtaSeconds: eta,
				Method:     kind,
			}) {
				kill()
				return errClientGone
			}
			lastProgress = progress
		}
	}

	// If the reader died mid-stream, Wait would block forever on a
	// fetcher stuck writing into the undrained pipe. Kill it and drain
	// to EOF first; the attempt fails like any other transfer error.
	select {
	case rerr := <-readErr:
		cmd.Process.Kill()
		io.Copy(io.Discard, stderr)
		cmd.Wait()
		if sess.cancelled() {
			return errCancelled
		}
		return fmt.Errorf("%s progress output unreadable: %w", kind, rerr)
	default:
	}

	waitErr := cmd.Wait()

	// Cancel may land just as the process finishes; the cancel outcome
	// wins so the stream terminates with a cancelled event.
	if sess.cancelled() {
		return errCancelled
	}

	if waitErr != nil {
		return fmt.Errorf("%s exited abnormally: %w", kind, waitErr)
	}
	return nil
}

// scanProgressLines splits on \n or \r. curl's progress bar redraws
// in place with bare carriage returns and no newline for the whole
// transfer; splitting on \r keeps those updates flowing as lines.
func scanProgressLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// parsePercent extracts the integer truncation of the first percent
// indicator on a line.
func parsePercent(line string) (int, bool) {
	match := percentPattern.FindStringSubmatch(line)
	if match == nil {
		return 0, false
	}
	value, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return 0, false
	}
	return int(value), true
}

// transferEstimates derives throughput (MiB/s) and remaining seconds from
// the progress percentage and the expected artifact size. Zero elapsed
// time or zero rate reports both as zero.
func transferEstimates(progress int, sizeGB float64, elapsed time.Duration) (float64, int) {
	seconds := elapsed.Seconds()
	if seconds <= 0 {
		return 0, 0
	}

	downloadedMB := (float64(progress) / 100) * sizeGB * 1024
	speed := downloadedMB / seconds
	if speed <= 0 {
		return 0, 0
	}

	remainingMB := sizeGB*1024 - downloadedMB
	return speed, int(remainingMB / speed)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
