package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hackgods/practitioner-scheduling/internal/calendar"
	"github.com/hackgods/practitioner-scheduling/internal/config"
	"github.com/hackgods/practitioner-scheduling/internal/db"
	"github.com/hackgods/practitioner-scheduling/internal/directory"
	"github.com/hackgods/practitioner-scheduling/internal/logger"
)

type SimConfig struct {
	APIBaseURL        string
	Duration          time.Duration
	Workers           int
	BookingRatio      float64
	CancelRatio       float64
	ReadRatio         float64
	PractitionerLimit int
	PatientLimit      int
	Days              int
	PostgresDSN       string
	Location          *time.Location
}

type DataPool struct {
	Practitioners []uuid.UUID
	Patients      []uuid.UUID
	Dates         []calendar.Date
	Clerk         uuid.UUID

	mu           sync.RWMutex
	appointments []uuid.UUID
}

func (dp *DataPool) AddAppointment(id uuid.UUID) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.appointments = append(dp.appointments, id)
}

func (dp *DataPool) RandomAppointment(rng *rand.Rand) (uuid.UUID, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.appointments) == 0 {
		return uuid.Nil, false
	}
	return dp.appointments[rng.Intn(len(dp.appointments))], true
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, success, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case success:
		atomic.AddInt64(&om.Success, 1)
	case conflict:
		atomic.AddInt64(&om.Conflict, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, lo, hi, p50, p95 time.Duration) {
	om.mu.Lock()
	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)
	om.mu.Unlock()

	if len(latencies) == 0 {
		return 0, 0, 0, 0, 0
	}
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}
	percentile := func(p int) time.Duration {
		return latencies[min(len(latencies)*p/100, len(latencies)-1)]
	}
	return sum / time.Duration(len(latencies)), latencies[0], latencies[len(latencies)-1], percentile(50), percentile(95)
}

type Metrics struct {
	Booking  OperationMetrics
	Cancel   OperationMetrics
	ReadByID OperationMetrics
	Agenda   OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	metrics Metrics
	logger  *zap.Logger
}

func main() {
	cfg, zl := loadConfig()
	defer func() { _ = zl.Sync() }()

	if err := validateConfig(cfg); err != nil {
		zl.Fatal("invalid config", zap.Error(err))
	}

	zl.Info("simulator starting",
		zap.Duration("duration", cfg.Duration),
		zap.Int("workers", cfg.Workers),
		zap.Float64("booking", cfg.BookingRatio),
		zap.Float64("cancel", cfg.CancelRatio),
		zap.Float64("read", cfg.ReadRatio),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, db.PoolOptions{MaxConns: 2})
	if err != nil {
		zl.Fatal("connect postgres", zap.Error(err))
	}
	dataPool, err := loadDataPool(ctx, directory.NewPgDirectory(pgPool), cfg)
	pgPool.Close()
	if err != nil {
		zl.Fatal("load data pool", zap.Error(err))
	}

	zl.Info("data pool loaded",
		zap.Int("practitioners", len(dataPool.Practitioners)),
		zap.Int("patients", len(dataPool.Patients)),
		zap.Int("days", len(dataPool.Dates)),
	)

	sim := &Simulator{
		config: cfg,
		pool:   dataPool,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: zl,
	}

	sim.Run()
	overlaps := sim.VerifyAgendas()
	sim.PrintReport(overlaps)
	if overlaps > 0 {
		os.Exit(1)
	}
}

func loadConfig() (SimConfig, *zap.Logger) {
	baseCfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load base config: %v\n", err)
		os.Exit(1)
	}

	cfg := SimConfig{
		APIBaseURL:        getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:          getDuration("SIM_DURATION", 30*time.Second),
		Workers:           getInt("SIM_WORKERS", 10),
		BookingRatio:      getFloat("SIM_BOOKING_RATIO", 0.5),
		CancelRatio:       getFloat("SIM_CANCEL_RATIO", 0.1),
		ReadRatio:         getFloat("SIM_READ_RATIO", 0.4),
		PractitionerLimit: getInt("SIM_PRACTITIONER_LIMIT", 5),
		PatientLimit:      getInt("SIM_PATIENT_LIMIT", 1000),
		Days:              getInt("SIM_DAYS", 3),
		PostgresDSN:       baseCfg.PostgresDSN,
		Location:          baseCfg.Location,
	}

	total := cfg.BookingRatio + cfg.CancelRatio + cfg.ReadRatio
	if total > 0 {
		cfg.BookingRatio /= total
		cfg.CancelRatio /= total
		cfg.ReadRatio /= total
	}

	return cfg, logger.Must(baseCfg.Env)
}

func validateConfig(cfg SimConfig) error {
	if cfg.PostgresDSN == "" {
		return fmt.Errorf("POSTGRES_DSN is required (set in .env or environment)")
	}
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	if cfg.Days <= 0 {
		return fmt.Errorf("SIM_DAYS must be > 0")
	}
	return nil
}

// loadDataPool picks the practitioners and patients to book with. Booking
// starts tomorrow so every generated start lies in the future.
func loadDataPool(ctx context.Context, dir *directory.PgDirectory, cfg SimConfig) (*DataPool, error) {
	practitioners, err := dir.ListPractitionerIDs(ctx, cfg.PractitionerLimit)
	if err != nil {
		return nil, fmt.Errorf("load practitioners: %w", err)
	}
	patients, err := dir.ListPatientIDs(ctx, cfg.PatientLimit)
	if err != nil {
		return nil, fmt.Errorf("load patients: %w", err)
	}
	if len(practitioners) == 0 {
		return nil, fmt.Errorf("no practitioners loaded, run cmd/seed first")
	}
	if len(patients) == 0 {
		return nil, fmt.Errorf("no patients loaded, run cmd/seed first")
	}

	tomorrow := calendar.DateOf(time.Now().In(cfg.Location)).AddDays(1)
	return &DataPool{
		Practitioners: practitioners,
		Patients:      patients,
		Dates:         calendar.Days(tomorrow, tomorrow.AddDays(cfg.Days-1)),
		Clerk:         uuid.New(),
	}, nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}
	wg.Wait()
	s.logger.Info("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for ctx.Err() == nil {
		r := rng.Float64()
		switch {
		case r < s.config.BookingRatio:
			s.doBooking(ctx, rng)
		case r < s.config.BookingRatio+s.config.CancelRatio:
			s.doCancel(ctx, rng)
		case rng.Intn(2) == 0:
			s.doReadByID(ctx, rng)
		default:
			s.doAgenda(ctx, rng)
		}
	}
}

func (s *Simulator) pick(rng *rand.Rand) (uuid.UUID, calendar.Date) {
	return s.pool.Practitioners[rng.Intn(len(s.pool.Practitioners))], s.pool.Dates[rng.Intn(len(s.pool.Dates))]
}

func (s *Simulator) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Actor-ID", s.pool.Clerk.String())
	return req, nil
}

// doBooking reads the free slots of a random practitioner-day and races the
// other workers for one of the first few.
func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	practitionerID, d := s.pick(rng)
	duration := []int{30, 60}[rng.Intn(2)]

	req, err := s.newRequest(ctx, http.MethodGet,
		fmt.Sprintf("/slots?practitioner_id=%s&date=%s&duration=%d", practitionerID, d, duration), nil)
	if err != nil {
		return
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return
	}
	var free struct {
		Slots []struct {
			Start calendar.Clock `json:"start"`
		} `json:"slots"`
	}
	err = json.NewDecoder(resp.Body).Decode(&free)
	resp.Body.Close()
	if err != nil || len(free.Slots) == 0 {
		return
	}

	slot := free.Slots[rng.Intn(min(len(free.Slots), 3))]
	body := map[string]any{
		"practitioner_id": practitionerID,
		"patient_id":      s.pool.Patients[rng.Intn(len(s.pool.Patients))],
		"start":           d.At(slot.Start, s.config.Location),
		"duration":        duration,
		"motive":          "simulated visit",
	}

	start := time.Now()
	req, err = s.newRequest(ctx, http.MethodPost, "/appointments", body)
	if err != nil {
		return
	}
	resp, err = s.client.Do(req)
	latency := time.Since(start)

	success, conflict := false, false
	if err == nil {
		defer resp.Body.Close()
		switch resp.StatusCode {
		case http.StatusCreated:
			success = true
			var created struct {
				ID uuid.UUID `json:"id"`
			}
			if json.NewDecoder(resp.Body).Decode(&created) == nil && created.ID != uuid.Nil {
				s.pool.AddAppointment(created.ID)
			}
		case http.StatusConflict:
			conflict = true
		}
	}
	s.metrics.Booking.Record(latency, success, conflict)
}

func (s *Simulator) doCancel(ctx context.Context, rng *rand.Rand) {
	apptID, ok := s.pool.RandomAppointment(rng)
	if !ok {
		return
	}

	start := time.Now()
	req, err := s.newRequest(ctx, http.MethodPost, "/appointments/"+apptID.String()+"/cancel",
		map[string]string{"reason": "simulated cancellation"})
	if err != nil {
		return
	}
	resp, err := s.client.Do(req)
	latency := time.Since(start)

	success, conflict := false, false
	if err == nil {
		defer resp.Body.Close()
		success = resp.StatusCode == http.StatusOK
		// Already cancelled by another worker.
		conflict = resp.StatusCode == http.StatusBadRequest
	}
	s.metrics.Cancel.Record(latency, success, conflict)
}

func (s *Simulator) doReadByID(ctx context.Context, rng *rand.Rand) {
	apptID, ok := s.pool.RandomAppointment(rng)
	if !ok {
		return
	}
	s.timedGet(ctx, &s.metrics.ReadByID, "/appointments/"+apptID.String())
}

func (s *Simulator) doAgenda(ctx context.Context, rng *rand.Rand) {
	practitionerID, d := s.pick(rng)
	s.timedGet(ctx, &s.metrics.Agenda, fmt.Sprintf("/agenda?date=%s&practitioner_id=%s", d, practitionerID))
}

func (s *Simulator) timedGet(ctx context.Context, om *OperationMetrics, path string) {
	start := time.Now()
	req, err := s.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return
	}
	resp, err := s.client.Do(req)
	latency := time.Since(start)

	success := false
	if err == nil {
		defer resp.Body.Close()
		success = resp.StatusCode == http.StatusOK
	}
	om.Record(latency, success, false)
}

type agendaEntry struct {
	ID     uuid.UUID `json:"id"`
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Status string    `json:"status"`
}

// VerifyAgendas fetches every simulated practitioner-day and counts pairs of
// active appointments that overlap. Any non-zero result is a bug.
func (s *Simulator) VerifyAgendas() int {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	var overlaps atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for _, practitionerID := range s.pool.Practitioners {
		for _, d := range s.pool.Dates {
			g.Go(func() error {
				req, err := s.newRequest(gctx, http.MethodGet,
					fmt.Sprintf("/agenda?date=%s&practitioner_id=%s", d, practitionerID), nil)
				if err != nil {
					return err
				}
				resp, err := s.client.Do(req)
				if err != nil {
					return err
				}
				defer resp.Body.Close()

				var agenda []agendaEntry
				if err := json.NewDecoder(resp.Body).Decode(&agenda); err != nil {
					return fmt.Errorf("decode agenda: %w", err)
				}
				overlaps.Add(int64(countOverlaps(agenda)))
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		s.logger.Error("agenda verification failed", zap.Error(err))
	}
	return int(overlaps.Load())
}

func countOverlaps(agenda []agendaEntry) int {
	n := 0
	for i := range agenda {
		for j := i + 1; j < len(agenda); j++ {
			a, b := agenda[i], agenda[j]
			if a.Status == "cancelled" || b.Status == "cancelled" {
				continue
			}
			if calendar.Overlaps(a.Start.Unix(), a.End.Unix(), b.Start.Unix(), b.End.Unix()) {
				n++
			}
		}
	}
	return n
}

func (s *Simulator) PrintReport(overlaps int) {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Println()

	printOperationReport("Booking", &s.metrics.Booking)
	printOperationReport("Cancel", &s.metrics.Cancel)
	printOperationReport("Read by ID", &s.metrics.ReadByID)
	printOperationReport("Agenda", &s.metrics.Agenda)

	fmt.Printf("Overlapping appointments found: %d\n", overlaps)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)
	avg, lo, hi, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, float64(failed)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), lo.Round(time.Millisecond), hi.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
	fmt.Println()
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
