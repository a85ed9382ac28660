package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/dental-practice-booking/internal/api"
	"github.com/hackgods/dental-practice-booking/internal/appointment"
	"github.com/hackgods/dental-practice-booking/internal/config"
	"github.com/hackgods/dental-practice-booking/internal/observability"
	redisclient "github.com/hackgods/dental-practice-booking/internal/redis"
	"github.com/hackgods/dental-practice-booking/internal/schedule"
)

type SimConfig struct {
	APIBaseURL  string
	Duration    time.Duration
	Workers     int
	Patients    int
	Rounds      int // contention rounds, one slot each
	Insurance   string
	Treatment   string
	Dentist     string // empty picks the first eligible dentist
	WatchEvents bool
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Throttled int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, status int, err error) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case err != nil:
		atomic.AddInt64(&om.Error, 1)
	case status >= 200 && status < 300:
		atomic.AddInt64(&om.Success, 1)
	case status == http.StatusConflict:
		atomic.AddInt64(&om.Conflict, 1)
	case status == http.StatusTooManyRequests:
		atomic.AddInt64(&om.Throttled, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, min, max, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}
	avg = sum / time.Duration(len(latencies))
	min = latencies[0]
	max = latencies[len(latencies)-1]
	p50 = latencies[percentileIndex(len(latencies), 50)]
	p95 = latencies[percentileIndex(len(latencies), 95)]
	return avg, min, max, p50, p95
}

func percentileIndex(n, p int) int {
	idx := n * p / 100
	if idx >= n {
		idx = n - 1
	}
	return idx
}

type Metrics struct {
	Contended OperationMetrics
	Booking   OperationMetrics
	Cancel    OperationMetrics
	ListSlots OperationMetrics
}

// RoundResult is the outcome of firing every worker at the same slot.
type RoundResult struct {
	Slot    appointment.SlotKey
	Winners int
}

type Simulator struct {
	config   SimConfig
	client   *http.Client
	logger   zerolog.Logger
	metrics  Metrics
	patients []string
	dentist  string
	date     string

	mu     sync.Mutex
	booked []appointment.Entry
	rounds []RoundResult
	events map[string]int
}

func main() {
	baseCfg, err := config.Load()
	if err != nil {
		bootLogger := observability.InitLogger("simulate", "dev", "info")
		bootLogger.Fatal().Err(err).Msg("failed to load base config")
	}
	logger := observability.InitLogger("simulate", baseCfg.Env, baseCfg.LogLevel)

	cfg := loadConfig()
	if err := validateConfig(cfg); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}
	logger.Info().
		Dur("duration", cfg.Duration).
		Int("workers", cfg.Workers).
		Int("rounds", cfg.Rounds).
		Msg("simulator starting")

	sim := &Simulator{
		config: cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
		events: map[string]int{},
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration+time.Minute)
	defer cancel()

	if cfg.WatchEvents {
		if err := sim.watchEvents(ctx, baseCfg); err != nil {
			logger.Fatal().Err(err).Msg("subscribe to booking events")
		}
	}

	if err := sim.Setup(ctx); err != nil {
		logger.Fatal().Err(err).Msg("setup")
	}
	sim.Contend(ctx)
	sim.Run(ctx)

	// let trailing events arrive before the report
	if cfg.WatchEvents {
		time.Sleep(500 * time.Millisecond)
	}
	sim.PrintReport()
}

func loadConfig() SimConfig {
	return SimConfig{
		APIBaseURL:  strings.TrimRight(getEnv("SIM_API_BASE_URL", "http://localhost:8080"), "/"),
		Duration:    getDuration("SIM_DURATION", 30*time.Second),
		Workers:     getInt("SIM_WORKERS", 10),
		Patients:    getInt("SIM_PATIENTS", 20),
		Rounds:      getInt("SIM_ROUNDS", 5),
		Insurance:   getEnv("SIM_INSURANCE", "gesetzlich"),
		Treatment:   getEnv("SIM_TREATMENT", "Karies klein"),
		Dentist:     os.Getenv("SIM_DENTIST"),
		WatchEvents: getEnv("SIM_WATCH_EVENTS", "false") == "true",
	}
}

func validateConfig(cfg SimConfig) error {
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Patients < cfg.Workers {
		return fmt.Errorf("SIM_PATIENTS must be >= SIM_WORKERS")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	return nil
}

// Setup registers throwaway patients and picks the dentist and day the
// simulation books against.
func (s *Simulator) Setup(ctx context.Context) error {
	runID := uuid.NewString()[:8]
	for i := 0; i < s.config.Patients; i++ {
		name := fmt.Sprintf("sim-%s-%03d", runID, i)
		status, err := s.send(ctx, http.MethodPost, "/patients", api.RegisterPatientRequest{
			Name:      name,
			Password:  uuid.NewString(),
			Insurance: s.config.Insurance,
			Problem:   s.config.Treatment,
			Units:     1000,
		}, nil)
		if err != nil {
			return err
		}
		if status != http.StatusCreated {
			return fmt.Errorf("register patient %s: status %d", name, status)
		}
		s.patients = append(s.patients, name)
	}

	s.dentist = s.config.Dentist
	if s.dentist == "" {
		var dentists []api.DentistResponse
		q := url.Values{"insurance": {s.config.Insurance}}
		if _, err := s.send(ctx, http.MethodGet, "/dentists?"+q.Encode(), nil, &dentists); err != nil {
			return err
		}
		if len(dentists) == 0 {
			return fmt.Errorf("no dentist accepts %q", s.config.Insurance)
		}
		s.dentist = dentists[0].Name
	}

	var days []schedule.CalendarDay
	if _, err := s.send(ctx, http.MethodGet, s.dentistPath("/calendar"), nil, &days); err != nil {
		return err
	}
	for _, d := range days {
		if d.Status == schedule.DayOpen {
			s.date = d.Date
			break
		}
	}
	if s.date == "" {
		return fmt.Errorf("dentist %q has no open day in the booking horizon", s.dentist)
	}

	s.logger.Info().
		Int("patients", len(s.patients)).
		Str("dentist", s.dentist).
		Str("date", s.date).
		Msg("setup complete")
	return nil
}

// Contend fires every worker at the same free slot and records how many
// bookings were accepted. Anything above one is a double booking.
func (s *Simulator) Contend(ctx context.Context) {
	for round := 0; round < s.config.Rounds; round++ {
		slots, err := s.freeSlots(ctx)
		if err != nil || len(slots) == 0 {
			s.logger.Warn().Err(err).Int("round", round).Msg("no free slot left for contention")
			return
		}
		key := appointment.SlotKey{Dentist: s.dentist, Date: s.date, Start: slots[0]}

		var (
			wg      sync.WaitGroup
			winners int64
			start   = make(chan struct{})
		)
		for i := 0; i < s.config.Workers; i++ {
			wg.Add(1)
			go func(patient string) {
				defer wg.Done()
				<-start
				if s.book(ctx, key, patient, &s.metrics.Contended) {
					atomic.AddInt64(&winners, 1)
				}
			}(s.patients[i])
		}
		close(start)
		wg.Wait()

		result := RoundResult{Slot: key, Winners: int(winners)}
		s.mu.Lock()
		s.rounds = append(s.rounds, result)
		s.mu.Unlock()

		ev := s.logger.Info()
		if result.Winners > 1 {
			ev = s.logger.Error()
		}
		ev.Str("slot", key.String()).Int("winners", result.Winners).Msg("contention round")
	}
}

// Run mixes slot listings, bookings and cancellations until the configured
// duration elapses.
func (s *Simulator) Run(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, s.config.Duration)
	defer cancel()

	s.logger.Info().Dur("duration", s.config.Duration).Int("workers", s.config.Workers).Msg("starting mixed load")

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}
	wg.Wait()
	s.logger.Info().Msg("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for ctx.Err() == nil {
		switch r := rng.Float64(); {
		case r < 0.5:
			start := time.Now()
			_, err := s.freeSlots(ctx)
			s.metrics.ListSlots.Record(time.Since(start), http.StatusOK, err)
		case r < 0.8:
			slots, err := s.freeSlots(ctx)
			if err != nil || len(slots) == 0 {
				continue
			}
			key := appointment.SlotKey{Dentist: s.dentist, Date: s.date, Start: slots[rng.Intn(len(slots))]}
			s.book(ctx, key, s.patients[rng.Intn(len(s.patients))], &s.metrics.Booking)
		default:
			s.cancelRandom(ctx, rng)
		}
	}
}

func (s *Simulator) freeSlots(ctx context.Context) ([]string, error) {
	q := url.Values{"date": {s.date}, "treatment": {s.config.Treatment}}
	var resp api.SlotsResponse
	status, err := s.send(ctx, http.MethodGet, s.dentistPath("/slots?"+q.Encode()), nil, &resp)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("list slots: status %d", status)
	}
	return resp.Slots, nil
}

func (s *Simulator) book(ctx context.Context, key appointment.SlotKey, patient string, om *OperationMetrics) bool {
	start := time.Now()
	status, err := s.send(ctx, http.MethodPost, "/bookings", api.CreateBookingRequest{
		Dentist:   key.Dentist,
		Date:      key.Date,
		Time:      key.Start,
		Patient:   patient,
		Treatment: s.config.Treatment,
		Units:     1,
	}, nil)
	om.Record(time.Since(start), status, err)

	if err != nil || status != http.StatusCreated {
		return false
	}
	s.mu.Lock()
	s.booked = append(s.booked, appointment.Entry{SlotKey: key, Booking: appointment.Booking{Patient: patient}})
	s.mu.Unlock()
	return true
}

func (s *Simulator) cancelRandom(ctx context.Context, rng *rand.Rand) {
	s.mu.Lock()
	if len(s.booked) == 0 {
		s.mu.Unlock()
		return
	}
	idx := rng.Intn(len(s.booked))
	entry := s.booked[idx]
	s.booked = append(s.booked[:idx], s.booked[idx+1:]...)
	s.mu.Unlock()

	path := fmt.Sprintf("/bookings/%s/%s/%s?%s",
		url.PathEscape(entry.Dentist), entry.Date, entry.Start,
		url.Values{"patient": {entry.Patient}}.Encode())

	start := time.Now()
	status, err := s.send(ctx, http.MethodDelete, path, nil, nil)
	s.metrics.Cancel.Record(time.Since(start), status, err)
}

// watchEvents counts booking events published by the server.
func (s *Simulator) watchEvents(ctx context.Context, cfg config.Config) error {
	rdb, err := redisclient.NewRedisClient(ctx, redisclient.Options{
		Addr:     cfg.RedisAddr,
		Username: cfg.RedisUsername,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		return err
	}

	bus := redisclient.NewEventBus(rdb, cfg.EventsChannel, s.logger)
	events, err := bus.Subscribe(ctx)
	if err != nil {
		_ = rdb.Close()
		return err
	}

	go func() {
		defer rdb.Close()
		for ev := range events {
			s.mu.Lock()
			s.events[ev.Type]++
			s.mu.Unlock()
		}
	}()
	return nil
}

func (s *Simulator) dentistPath(suffix string) string {
	return "/dentists/" + url.PathEscape(s.dentist) + suffix
}

// send issues one request and decodes a JSON body into out when the call
// succeeded. A non-2xx status is not an error.
func (s *Simulator) send(ctx context.Context, method, path string, body, out any) (int, error) {
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, reader)
	if err != nil {
		return 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return 0, ctx.Err()
		}
		return 0, err
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode %s %s: %w", method, path, err)
		}
	}
	return resp.StatusCode, nil
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Dentist: %s  Date: %s  Treatment: %s\n", s.dentist, s.date, s.config.Treatment)
	fmt.Printf("Duration: %s  Workers: %d\n", s.config.Duration, s.config.Workers)
	fmt.Println()

	doubleBooked := 0
	for _, r := range s.rounds {
		if r.Winners > 1 {
			doubleBooked++
		}
		fmt.Printf("Round %-28s winners=%d\n", r.Slot.String(), r.Winners)
	}
	fmt.Printf("Double-booked rounds: %d of %d\n\n", doubleBooked, len(s.rounds))

	printOperationReport("Contended booking", &s.metrics.Contended)
	printOperationReport("Booking", &s.metrics.Booking)
	printOperationReport("Cancel", &s.metrics.Cancel)
	printOperationReport("List slots", &s.metrics.ListSlots)

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.events) > 0 {
		fmt.Println("Events received:")
		types := make([]string, 0, len(s.events))
		for t := range s.events {
			types = append(types, t)
		}
		sort.Strings(types)
		for _, t := range types {
			fmt.Printf("  %s: %d\n", t, s.events[t])
		}
	}
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	pct := func(n int64) float64 { return float64(n) / float64(total) * 100 }
	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	throttled := atomic.LoadInt64(&om.Throttled)
	failed := atomic.LoadInt64(&om.Error)

	avg, min, max, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, pct(success))
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, pct(conflict))
	}
	if throttled > 0 {
		fmt.Printf("  Throttled: %d (%.1f%%)\n", throttled, pct(throttled))
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, pct(failed))
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), min.Round(time.Millisecond), max.Round(time.Millisecond),
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
