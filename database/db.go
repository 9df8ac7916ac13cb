package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"travelagent/models"
)

var ErrNotFound = errors.New("record not found")

// Store is the Postgres-backed search log and booking store.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// ─── Init ─────────────────────────────────────────────────────────────────────

// Open connects to Postgres, waiting for the server to come up, and runs
// the migrations.
func Open(ctx context.Context, dsn string, logger *zap.Logger) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	s := NewStore(db, logger)
	if err := s.waitReady(ctx, 10, 2*time.Second); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	s.logger.Info("database connected and migrated")
	return s, nil
}

func NewStore(db *sql.DB, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: db, logger: logger.Named("database")}
}

func (s *Store) waitReady(ctx context.Context, attempts int, delay time.Duration) error {
	var err error
	for i := 1; i <= attempts; i++ {
		if err = s.db.PingContext(ctx); err == nil {
			return nil
		}
		s.logger.Warn("waiting for database", zap.Int("attempt", i), zap.Int("of", attempts), zap.Error(err))
		if i == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return fmt.Errorf("connect to database after %d attempts: %w", attempts, err)
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

// ─── Migrations ───────────────────────────────────────────────────────────────

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS searches (
		id               TEXT PRIMARY KEY,
		prompt           TEXT NOT NULL,
		origin           TEXT,
		destination      TEXT,
		origin_code      TEXT,
		destination_code TEXT,
		departure_date   TEXT,
		return_date      TEXT,
		price_min        NUMERIC(12,2),
		price_max        NUMERIC(12,2),
		passengers       INTEGER DEFAULT 1,
		status           TEXT NOT NULL,
		offer_count      INTEGER DEFAULT 0,
		query_json       TEXT,
		created_at       TIMESTAMPTZ DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS bookings (
		id                TEXT PRIMARY KEY,
		user_id           TEXT,
		order_id          TEXT NOT NULL,
		booking_reference TEXT,
		status            TEXT NOT NULL,
		payment_status    TEXT NOT NULL,
		total_price       NUMERIC(12,2) NOT NULL,
		currency          TEXT NOT NULL,
		offer_json        TEXT NOT NULL,
		pdf_data          BYTEA,
		created_at        TIMESTAMPTZ DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS booking_items (
		id           TEXT PRIMARY KEY,
		booking_id   TEXT NOT NULL REFERENCES bookings(id) ON DELETE CASCADE,
		item_type    TEXT NOT NULL,
		reference    TEXT NOT NULL,
		price        NUMERIC(12,2) NOT NULL,
		details_json TEXT
	)`,

	`CREATE TABLE IF NOT EXISTS passengers (
		id              TEXT PRIMARY KEY,
		booking_id      TEXT NOT NULL REFERENCES bookings(id) ON DELETE CASCADE,
		first_name      TEXT NOT NULL,
		last_name       TEXT NOT NULL,
		date_of_birth   TEXT NOT NULL,
		gender          TEXT,
		email           TEXT,
		phone           TEXT,
		passport_number TEXT,
		nationality     TEXT
	)`,

	`CREATE INDEX IF NOT EXISTS idx_passengers_booking_id
		ON passengers(booking_id)`,

	`CREATE INDEX IF NOT EXISTS idx_searches_created_at
		ON searches(created_at DESC)`,
}

func (s *Store) Migrate(ctx context.Context) error {
	for _, m := range migrations {
		if _, err := s.db.ExecContext(ctx, m); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// ─── Searches ─────────────────────────────────────────────────────────────────

func dateText(d *models.Date) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func (s *Store) SaveSearch(ctx context.Context, l models.SearchLog) error {
	query, err := json.Marshal(l.Query)
	if err != nil {
		return fmt.Errorf("encode search query: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO searches (id, prompt, origin, destination, origin_code, destination_code,
			departure_date, return_date, price_min, price_max, passengers, status, offer_count, query_json, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		l.ID, l.Prompt, l.Query.OriginName, l.Query.DestinationName, l.Origin, l.Destination,
		dateText(l.Query.DepartDate), dateText(l.Query.ReturnDate),
		nullFloat(l.Query.PriceMin), nullFloat(l.Query.PriceMax), l.Query.PassengerCount,
		string(l.Status), l.OfferCount, string(query), l.CreatedAt)
	if err != nil {
		return fmt.Errorf("save search %s: %w", l.ID, err)
	}
	return nil
}

func (s *Store) GetSearch(ctx context.Context, id string) (models.SearchLog, error) {
	var (
		l      models.SearchLog
		status string
		query  sql.NullString
		orig   sql.NullString
		dest   sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, prompt, origin_code, destination_code, status, offer_count, query_json, created_at
		FROM searches WHERE id = $1`, id).
		Scan(&l.ID, &l.Prompt, &orig, &dest, &status, &l.OfferCount, &query, &l.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.SearchLog{}, ErrNotFound
	}
	if err != nil {
		return models.SearchLog{}, fmt.Errorf("get search %s: %w", id, err)
	}
	l.Origin, l.Destination = orig.String, dest.String
	l.Status = models.SearchStatus(status)
	if query.Valid && query.String != "" {
		if err := json.Unmarshal([]byte(query.String), &l.Query); err != nil {
			return models.SearchLog{}, fmt.Errorf("decode search query %s: %w", id, err)
		}
	}
	return l, nil
}

// ─── Bookings ─────────────────────────────────────────────────────────────────

// storedOffer keeps the upstream payload next to the normalized offer so a
// stored booking can be priced or re-issued without another search.
type storedOffer struct {
	Offer models.FlightOffer `json:"offer"`
	Raw   json.RawMessage    `json:"raw,omitempty"`
}

// CreateBooking writes the booking, its flight item and its passengers in
// one transaction.
func (s *Store) CreateBooking(ctx context.Context, b models.BookingRecord) (err error) {
	offer, err := json.Marshal(storedOffer{Offer: b.Offer, Raw: b.Offer.Raw})
	if err != nil {
		return fmt.Errorf("encode booking offer: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin booking transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				s.logger.Error("booking rollback failed", zap.String("booking_id", b.ID), zap.Error(rbErr))
			}
		}
	}()

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO bookings (id, user_id, order_id, booking_reference, status, payment_status,
			total_price, currency, offer_json, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		b.ID, b.UserID, b.OrderID, b.BookingReference, b.Status, b.PaymentStatus,
		b.TotalPrice, b.Currency, string(offer), b.CreatedAt); err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO booking_items (id, booking_id, item_type, reference, price, details_json)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.NewString(), b.ID, "flight", b.Offer.OfferID, b.TotalPrice, string(offer)); err != nil {
		return fmt.Errorf("insert booking item: %w", err)
	}

	for _, p := range b.Passengers {
		id := p.ID
		if id == "" {
			id = uuid.NewString()
		}
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO passengers (id, booking_id, first_name, last_name, date_of_birth, gender,
				email, phone, passport_number, nationality)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			id, b.ID, p.FirstName, p.LastName, p.DateOfBirth, p.Gender,
			p.Email, p.Phone, p.PassportNumber, p.Nationality); err != nil {
			return fmt.Errorf("insert passenger: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit booking: %w", err)
	}
	return nil
}

func (s *Store) GetBooking(ctx context.Context, id string) (models.BookingRecord, error) {
	var (
		b      models.BookingRecord
		userID sql.NullString
		ref    sql.NullString
		offer  string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, order_id, booking_reference, status, payment_status,
			total_price, currency, offer_json, created_at
		FROM bookings WHERE id = $1`, id).
		Scan(&b.ID, &userID, &b.OrderID, &ref, &b.Status, &b.PaymentStatus,
			&b.TotalPrice, &b.Currency, &offer, &b.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.BookingRecord{}, ErrNotFound
	}
	if err != nil {
		return models.BookingRecord{}, fmt.Errorf("get booking %s: %w", id, err)
	}
	b.UserID, b.BookingReference = userID.String, ref.String

	var stored storedOffer
	if err := json.Unmarshal([]byte(offer), &stored); err != nil {
		return models.BookingRecord{}, fmt.Errorf("decode booking offer %s: %w", id, err)
	}
	b.Offer = stored.Offer
	b.Offer.Raw = stored.Raw

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, first_name, last_name, date_of_birth, gender, email, phone, passport_number, nationality
		FROM passengers WHERE booking_id = $1 ORDER BY id`, id)
	if err != nil {
		return models.BookingRecord{}, fmt.Errorf("get passengers for %s: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var p models.Traveler
		var gender, email, phone, passport, nationality sql.NullString
		if err := rows.Scan(&p.ID, &p.FirstName, &p.LastName, &p.DateOfBirth,
			&gender, &email, &phone, &passport, &nationality); err != nil {
			return models.BookingRecord{}, fmt.Errorf("scan passenger: %w", err)
		}
		p.Gender, p.Email, p.Phone = gender.String, email.String, phone.String
		p.PassportNumber, p.Nationality = passport.String, nationality.String
		b.Passengers = append(b.Passengers, p)
	}
	if err := rows.Err(); err != nil {
		return models.BookingRecord{}, fmt.Errorf("read passengers for %s: %w", id, err)
	}
	return b, nil
}

func (s *Store) UpdateBookingStatus(ctx context.Context, id, status string) error {
	return s.execOne(ctx, `UPDATE bookings SET status = $1 WHERE id = $2`, status, id)
}

func (s *Store) SaveBookingPDF(ctx context.Context, id string, pdf []byte) error {
	return s.execOne(ctx, `UPDATE bookings SET pdf_data = $1 WHERE id = $2`, pdf, id)
}

// GetBookingPDF returns the cached document, or nil if none was stored yet.
func (s *Store) GetBookingPDF(ctx context.Context, id string) ([]byte, error) {
	var pdf []byte
	err := s.db.QueryRowContext(ctx, `SELECT pdf_data FROM bookings WHERE id = $1`, id).Scan(&pdf)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get booking pdf %s: %w", id, err)
	}
	return pdf, nil
}

func (s *Store) execOne(ctx context.Context, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
