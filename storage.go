package main

import (
	"bytes"
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	_ "github.com/tursodatabase/libsql-client-go/libsql"
)

const defaultTursoApi = "https://api.turso.tech"

// Storage keeps run transcripts in a libsql database (Turso) or a local sqlite file.
type Storage struct {
	ApiUrl    string
	OrgName   string
	GroupName string
	ApiToken  string
	AuthToken string
}

type RunInfo struct {
	Id       string
	Target   string
	Started  string
	Finished string
	Status   string
}

type StoredEvent struct {
	Seq       int
	Benchmark string
	Kind      string
	Text      string
	ExitCode  int
}

func (s *Storage) apiUrl() string {
	if s.ApiUrl == "" {
		return defaultTursoApi
	}
	return strings.TrimSuffix(s.ApiUrl, "/")
}

func (s *Storage) CreateDatabase(name string) error {
	url := fmt.Sprintf("%v/v1/organizations/%v/databases", s.apiUrl(), s.OrgName)
	req, err := http.NewRequest("POST", url, bytes.NewReader([]byte(fmt.Sprintf(`{"name":"%v","group":"%v"}`, name, s.GroupName))))
	if err != nil {
		return err
	}
	req.Header.Add("Authorization", "Bearer "+s.ApiToken)
	req.Header.Add("Content-Type", "application/json")

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode == http.StatusConflict {
		Logger.Infof("database %v already exists", name)
		return nil
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code %v: %v", resp.StatusCode, string(body))
	}
	Logger.Infof("created database %v", name)
	return nil
}

func (s *Storage) DbUrl(name string) string {
	return fmt.Sprintf("libsql://%v-%v.turso.io?authToken=%v", name, s.OrgName, s.AuthToken)
}

// ConnectDb opens file: urls with sqlite3 and everything else with libsql.
func (s *Storage) ConnectDb(url string) (*sql.DB, error) {
	driver := "libsql"
	if strings.HasPrefix(url, "file:") {
		driver = "sqlite3"
	}
	db, err := sql.Open(driver, url)
	if err != nil {
		return nil, fmt.Errorf("unable to open %v database: %w", driver, err)
	}
	return db, nil
}

func (s *Storage) InitRunsDb(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		target TEXT,
		started TEXT,
		finished TEXT,
		status TEXT
	)`)
	if err != nil {
		return err
	}
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS parameters (
		run TEXT,
		name TEXT,
		value,
		PRIMARY KEY (run, name)
	)`)
	if err != nil {
		return err
	}
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS events (
		run TEXT,
		seq INTEGER,
		benchmark TEXT,
		kind TEXT,
		text TEXT,
		exit_code INTEGER,
		PRIMARY KEY (run, seq)
	)`)
	if err != nil {
		return err
	}
	Logger.Infof("initialized database for benchmark runs")
	return nil
}

func (s *Storage) StartRun(db *sql.DB, target string, meta map[string]any) (string, error) {
	id := uuid.NewString()
	_, err := db.Exec(
		"INSERT INTO runs VALUES (?, ?, ?, NULL, ?)",
		id,
		target,
		time.Now().Format("2006-01-02 15:04:05"),
		"running",
	)
	if err != nil {
		return "", err
	}
	if len(meta) == 0 {
		return id, nil
	}
	parameters := make([]any, 0, len(meta)*3)
	for key, value := range meta {
		parameters = append(parameters, id, key, fmt.Sprintf("%v", value))
	}
	placeholders := strings.Join(slices.Repeat([]string{"(?, ?, ?)"}, len(meta)), ", ")
	_, err = db.Exec(
		fmt.Sprintf("INSERT INTO parameters VALUES %v ON CONFLICT DO NOTHING", placeholders),
		parameters...,
	)
	if err != nil {
		return "", err
	}
	Logger.Infof("started run %v for target %v with meta %v", id, target, meta)
	return id, nil
}

func (s *Storage) InsertEvent(db *sql.DB, run string, seq int, event RunEvent) error {
	text := event.Text
	switch event.Kind {
	case EventOutputLine, EventDiagnosticLine, EventNote:
	default:
		text = strings.TrimSpace(event.Format())
	}
	_, err := db.Exec(
		"INSERT INTO events VALUES (?, ?, ?, ?, ?, ?)",
		run,
		seq,
		event.Benchmark,
		event.Kind.String(),
		text,
		event.ExitCode,
	)
	return err
}

func (s *Storage) FinishRun(db *sql.DB, run string, status string) error {
	_, err := db.Exec(
		"UPDATE runs SET finished = ?, status = ? WHERE id = ?",
		time.Now().Format("2006-01-02 15:04:05"),
		status,
		run,
	)
	return err
}

func (s *Storage) Parameters(db *sql.DB, run string) (map[string]string, error) {
	rows, err := db.Query("SELECT name, value FROM parameters WHERE run = ?", run)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	results := make(map[string]string, 0)
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, err
		}
		results[name] = value
	}
	return results, rows.Err()
}

func (s *Storage) ListRuns(db *sql.DB, limit int) ([]RunInfo, error) {
	rows, err := db.Query(
		"SELECT id, target, started, COALESCE(finished, ''), status FROM runs ORDER BY started DESC, rowid DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	runs := make([]RunInfo, 0)
	for rows.Next() {
		var run RunInfo
		if err := rows.Scan(&run.Id, &run.Target, &run.Started, &run.Finished, &run.Status); err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (s *Storage) RunEvents(db *sql.DB, run string) ([]StoredEvent, error) {
	rows, err := db.Query("SELECT seq, benchmark, kind, text, exit_code FROM events WHERE run = ? ORDER BY seq", run)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	events := make([]StoredEvent, 0)
	for rows.Next() {
		var event StoredEvent
		if err := rows.Scan(&event.Seq, &event.Benchmark, &event.Kind, &event.Text, &event.ExitCode); err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// StoreSink appends every event of one run to the events table.
type StoreSink struct {
	storage *Storage
	db      *sql.DB
	run     string
	seq     int
}

func NewStoreSink(storage *Storage, db *sql.DB, run string) *StoreSink {
	return &StoreSink{storage: storage, db: db, run: run}
}

func (s *StoreSink) Emit(event RunEvent) error {
	if err := s.storage.InsertEvent(s.db, s.run, s.seq, event); err != nil {
		return fmt.Errorf("failed to store event %v of run %v: %w", s.seq, s.run, err)
	}
	s.seq++
	return nil
}

func (s *StoreSink) Run() string { return s.run }
