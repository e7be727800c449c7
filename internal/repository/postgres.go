// Package repository содержит реализацию доступа к данным в PostgreSQL.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/storefront-pricing/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrUserExists возвращается при попытке создать пользователя с уже существующим логином.
var (
	ErrUserExists = errors.New("user already exists")
	// ErrUserNotFound возвращается, если пользователь не найден.
	ErrUserNotFound = errors.New("user not found")
	// ErrOrderOwnedByAnother возвращается, если номер заказа принадлежит другому пользователю.
	ErrOrderOwnedByAnother = errors.New("order already placed by another user")
	// ErrOrderExists возвращается при повторном оформлении заказа тем же пользователем.
	ErrOrderExists = errors.New("order already placed")
	// ErrStaleRedemption возвращается, когда предложенное списание бонусов
	// превышает авторитетный баланс на момент фиксации заказа.
	ErrStaleRedemption = errors.New("stale bonus redemption")
	// ErrPolicyNotFound возвращается при отсутствии строки настроек ценообразования.
	ErrPolicyNotFound = errors.New("pricing policy not configured")
)

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

func (r *PostgresRepository) withRetry(ctx context.Context, fn func() error) error {
	var err error
	delays := []time.Duration{1 * time.Second, 3 * time.Second, 5 * time.Second}

	for i := 0; i <= len(delays); i++ {
		err = fn()
		if err == nil {
			return nil
		}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected {
				if i < len(delays) {
					time.Sleep(delays[i])
					continue
				}
			}
		}

		if isConnectionError(err) {
			if i < len(delays) {
				time.Sleep(delays[i])
				continue
			}
		}

		break
	}
	return err
}

func isConnectionError(err error) bool {
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// CreateUser создаёт нового пользователя.
func (r *PostgresRepository) CreateUser(ctx context.Context, login string, passwordHash []byte) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO users (login, password_hash) VALUES ($1, $2) RETURNING id`,
		login, passwordHash,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return 0, fmt.Errorf("%w: %s", ErrUserExists, login)
		}
		return 0, fmt.Errorf("create user: %w", err)
	}
	return id, nil
}

// GetUserByLogin возвращает пользователя по логину.
func (r *PostgresRepository) GetUserByLogin(ctx context.Context, login string) (*model.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, login, password_hash, created_at FROM users WHERE login = $1`,
		login,
	)

	var u model.User
	err := row.Scan(&u.ID, &u.Login, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	return &u, nil
}

// GetPolicy возвращает действующую политику ценообразования.
// Суммы хранятся в копейках и переводятся в денежные единицы здесь.
func (r *PostgresRepository) GetPolicy(ctx context.Context) (*model.PricingPolicy, error) {
	var (
		thresholdKop int64
		stepKop      int64
		deliveryKop  int64
		roundKop     int64
		rateBuffer   float64
		defaultRate  float64
	)

	err := r.pool.QueryRow(ctx,
		`SELECT bonus_threshold_kop, bonus_step_kop, delivery_price_kop, cashback_round_kop, rate_buffer, default_rate
		 FROM settings
		 WHERE id = 1`,
	).Scan(&thresholdKop, &stepKop, &deliveryKop, &roundKop, &rateBuffer, &defaultRate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPolicyNotFound
		}
		return nil, fmt.Errorf("get policy: %w", err)
	}

	return &model.PricingPolicy{
		BonusThreshold: decimal.New(thresholdKop, -2),
		BonusStep:      decimal.New(stepKop, -2),
		DeliveryPrice:  decimal.New(deliveryKop, -2),
		CashbackRound:  decimal.New(roundKop, -2),
		RateBuffer:     decimal.NewFromFloat(rateBuffer),
		DefaultRate:    decimal.NewFromFloat(defaultRate),
	}, nil
}

// GetTiers возвращает таблицу уровней лояльности по возрастанию порога.
func (r *PostgresRepository) GetTiers(ctx context.Context) ([]model.LoyaltyTier, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, title, order_threshold, bonus_percent
		 FROM loyalty_tiers
		 ORDER BY order_threshold`,
	)
	if err != nil {
		return nil, fmt.Errorf("select tiers: %w", err)
	}
	defer rows.Close()

	var tiers []model.LoyaltyTier
	for rows.Next() {
		var (
			id        int64
			title     string
			threshold int
			percent   float64
		)
		if err := rows.Scan(&id, &title, &threshold, &percent); err != nil {
			return nil, fmt.Errorf("scan tier: %w", err)
		}

		tiers = append(tiers, model.LoyaltyTier{
			ID:             id,
			Title:          title,
			OrderThreshold: threshold,
			BonusPercent:   decimal.NewFromFloat(percent),
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return tiers, nil
}

// GetLoyaltyState возвращает бонусный баланс в копейках и число оформленных заказов.
func (r *PostgresRepository) GetLoyaltyState(ctx context.Context, userID int64) (int64, int, error) {
	var balanceKop int64
	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount_kop), 0)
		 FROM bonus_moves
		 WHERE user_id = $1`,
		userID,
	).Scan(&balanceKop)
	if err != nil {
		return 0, 0, fmt.Errorf("sum bonus moves: %w", err)
	}

	if balanceKop < 0 {
		balanceKop = 0
	}

	var orderCount int
	err = r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM placed_orders WHERE user_id = $1`,
		userID,
	).Scan(&orderCount)
	if err != nil {
		return 0, 0, fmt.Errorf("count orders: %w", err)
	}

	return balanceKop, orderCount, nil
}

// PlaceOrder фиксирует заказ. Предложенное клиентом списание бонусов
// сверяется с авторитетным балансом под блокировкой строки пользователя;
// устаревшее предложение отклоняется с ErrStaleRedemption, а кешбэк и
// списание записываются в бонусный журнал атомарно с заказом.
func (r *PostgresRepository) PlaceOrder(ctx context.Context, userID int64, number string, totalKop, redeemedKop, cashbackKop int64) error {
	return r.withRetry(ctx, func() error {
		return r.placeOrderTx(ctx, userID, number, totalKop, redeemedKop, cashbackKop)
	})
}

func (r *PostgresRepository) placeOrderTx(ctx context.Context, userID int64, number string, totalKop, redeemedKop, cashbackKop int64) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	// Блокируем строку пользователя, чтобы параллельные корзины не
	// списали бонусы сверх баланса.
	var dummy int
	err = tx.QueryRow(ctx, `SELECT 1 FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&dummy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrUserNotFound
		}
		return fmt.Errorf("lock user for update: %w", err)
	}

	if redeemedKop > 0 {
		var balanceKop int64
		err = tx.QueryRow(ctx,
			`SELECT COALESCE(SUM(amount_kop), 0)
			 FROM bonus_moves
			 WHERE user_id = $1`,
			userID,
		).Scan(&balanceKop)
		if err != nil {
			return fmt.Errorf("sum bonus moves: %w", err)
		}

		if redeemedKop > balanceKop {
			return ErrStaleRedemption
		}
	}

	cmdTag, err := tx.Exec(ctx,
		`INSERT INTO placed_orders (number, user_id, total_kop, redeemed_kop, cashback_kop)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (number) DO NOTHING`,
		number, userID, totalKop, redeemedKop, cashbackKop,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	if cmdTag.RowsAffected() == 0 {
		var existingUserID int64
		err = tx.QueryRow(ctx,
			`SELECT user_id FROM placed_orders WHERE number = $1`,
			number,
		).Scan(&existingUserID)
		if err != nil {
			return fmt.Errorf("select existing order: %w", err)
		}

		if existingUserID == userID {
			return ErrOrderExists
		}
		return ErrOrderOwnedByAnother
	}

	if redeemedKop > 0 {
		_, err = tx.Exec(ctx,
			`INSERT INTO bonus_moves (user_id, amount_kop, order_number) VALUES ($1, $2, $3)`,
			userID, -redeemedKop, number,
		)
		if err != nil {
			return fmt.Errorf("insert redemption: %w", err)
		}
	}

	if cashbackKop > 0 {
		_, err = tx.Exec(ctx,
			`INSERT INTO bonus_moves (user_id, amount_kop, order_number) VALUES ($1, $2, $3)`,
			userID, cashbackKop, number,
		)
		if err != nil {
			return fmt.Errorf("insert cashback: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetOrdersByUser возвращает оформленные заказы пользователя.
func (r *PostgresRepository) GetOrdersByUser(ctx context.Context, userID int64) ([]model.PlacedOrder, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT number, total_kop, redeemed_kop, cashback_kop, placed_at
		 FROM placed_orders
		 WHERE user_id = $1
		 ORDER BY placed_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	defer rows.Close()

	var orders []model.PlacedOrder
	for rows.Next() {
		var (
			number      string
			totalKop    int64
			redeemedKop int64
			cashbackKop int64
			placedAt    time.Time
		)
		if err := rows.Scan(&number, &totalKop, &redeemedKop, &cashbackKop, &placedAt); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}

		orders = append(orders, model.PlacedOrder{
			Number:   number,
			Total:    decimal.New(totalKop, -2),
			Redeemed: decimal.New(redeemedKop, -2),
			Cashback: decimal.New(cashbackKop, -2),
			PlacedAt: placedAt,
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return orders, nil
}
