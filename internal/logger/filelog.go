package logger

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

var logFileMutex sync.Mutex

// EvalLogEntry is one evaluation result appended to the daily JSONL log.
type EvalLogEntry struct {
	Timestamp    time.Time `json:"timestamp"`
	PondID       uint32    `json:"pond_id"`
	PondName     string    `json:"pond_name"`
	ReadingID    uint32    `json:"reading_id"`
	IsAnomaly    bool      `json:"is_anomaly"`
	AnomalyScore float64   `json:"anomaly_score"`
	ChangePoints []string  `json:"change_points,omitempty"`
	RuleAlerts   int       `json:"rule_alerts"`
	DurationMS   int64     `json:"duration_ms"`
	Message      string    `json:"message,omitempty"`
}

// InitEvalFileLog ensures the evaluation log directory exists.
func InitEvalFileLog(logDir string) error {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	return nil
}

// WriteEvalLog appends an evaluation record to the dated log file,
// e.g. logs/eval-2026-08-25.jsonl.
func WriteEvalLog(logDir string, entry *EvalLogEntry) error {
	logFileMutex.Lock()
	defer logFileMutex.Unlock()

	date := time.Now().Format("2006-01-02")
	logFilePath := filepath.Join(logDir, fmt.Sprintf("eval-%s.jsonl", date))

	file, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer file.Close()

	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal log entry: %w", err)
	}

	if _, err := file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write log entry: %w", err)
	}

	return nil
}

// EvalLogQuery filters evaluation log entries.
type EvalLogQuery struct {
	PondID    *uint32    `json:"pond_id,omitempty"`
	Anomalies bool       `json:"anomalies,omitempty"`
	StartTime *time.Time `json:"start_time,omitempty"`
	EndTime   *time.Time `json:"end_time,omitempty"`
	Limit     int        `json:"limit,omitempty"`
	Offset    int        `json:"offset,omitempty"`
}

type EvalLogResult struct {
	Total int             `json:"total"`
	Logs  []*EvalLogEntry `json:"logs"`
}

// QueryEvalLogs scans the dated log files in the query's time range and
// returns matching entries, newest first.
func QueryEvalLogs(logDir string, req *EvalLogQuery) (*EvalLogResult, error) {
	result := &EvalLogResult{
		Logs: make([]*EvalLogEntry, 0),
	}

	var startDate, endDate time.Time
	if req.StartTime != nil {
		startDate = *req.StartTime
	} else {
		startDate = time.Now().AddDate(0, 0, -7)
	}

	if req.EndTime != nil {
		endDate = *req.EndTime
	} else {
		endDate = time.Now()
	}

	matched := make([]*EvalLogEntry, 0)
	for d := startDate; d.Before(endDate.AddDate(0, 0, 1)); d = d.AddDate(0, 0, 1) {
		dateStr := d.Format("2006-01-02")
		logFilePath := filepath.Join(logDir, fmt.Sprintf("eval-%s.jsonl", dateStr))

		if _, err := os.Stat(logFilePath); os.IsNotExist(err) {
			continue
		}

		entries, err := readEvalLogFile(logFilePath)
		if err != nil {
			continue
		}

		for _, entry := range entries {
			if !matchesEvalQuery(entry, req) {
				continue
			}
			matched = append(matched, entry)
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].Timestamp.After(matched[j].Timestamp)
	})

	result.Total = len(matched)
	if req.Limit <= 0 {
		req.Limit = 100
	}

	start := req.Offset
	if start > len(matched) {
		start = len(matched)
	}
	end := start + req.Limit
	if end > len(matched) {
		end = len(matched)
	}
	if start < end {
		result.Logs = matched[start:end]
	}

	return result, nil
}

func readEvalLogFile(logFilePath string) ([]*EvalLogEntry, error) {
	file, err := os.Open(logFilePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	entries := make([]*EvalLogEntry, 0)
	scanner := bufio.NewScanner(file)

	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}

		var entry EvalLogEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			continue
		}

		entries = append(entries, &entry)
	}

	return entries, scanner.Err()
}

func matchesEvalQuery(entry *EvalLogEntry, req *EvalLogQuery) bool {
	if req.PondID != nil && entry.PondID != *req.PondID {
		return false
	}
	if req.Anomalies && !entry.IsAnomaly {
		return false
	}
	if req.StartTime != nil && entry.Timestamp.Before(*req.StartTime) {
		return false
	}
	if req.EndTime != nil && entry.Timestamp.After(*req.EndTime) {
		return false
	}
	return true
}
