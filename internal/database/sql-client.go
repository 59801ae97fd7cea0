package database

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql" // MySQL driver

	"groupgate/entity"
	"groupgate/internal/config"
)

// MySql is the relational store: admins, resellers (with credit balance),
// invite links and revenue records. All status transitions go through
// status-guarded conditional updates so concurrent writers behave as
// compare-and-swap rather than blind overwrite.
type MySql struct {
	db         *sql.DB
	statements map[string]*sql.Stmt
	mu         sync.Mutex
}

func NewSQLClient(conf *config.Config) (*MySql, error) {
	connectionURI := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true",
		conf.MySql.UserName, conf.MySql.Password, conf.MySql.HostName, conf.MySql.Port, conf.MySql.Database)
	db, err := sql.Open("mysql", connectionURI)
	if err != nil {
		return nil, fmt.Errorf("sql connect: %w", err)
	}

	// try to ping three times with a 30-second interval; wait for a database to start
	for i := 0; i < 3; i++ {
		if err = db.Ping(); err == nil {
			break
		}
		if i == 2 {
			return nil, fmt.Errorf("ping database: %w", err)
		}
		time.Sleep(30 * time.Second)
	}

	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(time.Hour)

	sdb := &MySql{
		db:         db,
		statements: make(map[string]*sql.Stmt),
	}

	if err = sdb.ensureSchema(); err != nil {
		return nil, err
	}

	return sdb, nil
}

func (s *MySql) Close() {
	s.closeStmt()
	_ = s.db.Close()
}

func (s *MySql) ensureSchema() error {
	tables := []string{
		`CREATE TABLE IF NOT EXISTS admins (
			code VARCHAR(32) NOT NULL PRIMARY KEY,
			name VARCHAR(128) NOT NULL DEFAULT '',
			active TINYINT(1) NOT NULL DEFAULT 1,
			last_used DATETIME NULL
		)`,
		`CREATE TABLE IF NOT EXISTS resellers (
			code VARCHAR(32) NOT NULL PRIMARY KEY,
			name VARCHAR(128) NOT NULL DEFAULT '',
			credits BIGINT NOT NULL DEFAULT 0,
			group_id BIGINT NOT NULL,
			active TINYINT(1) NOT NULL DEFAULT 1
		)`,
		`CREATE TABLE IF NOT EXISTS invite_links (
			id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
			group_id BIGINT NOT NULL,
			group_title VARCHAR(255) NOT NULL DEFAULT '',
			invite_url VARCHAR(255) NOT NULL DEFAULT '',
			access_code VARCHAR(32) NOT NULL,
			status VARCHAR(32) NOT NULL,
			created_at DATETIME NOT NULL,
			used_at DATETIME NULL,
			expires_at DATETIME NOT NULL,
			created_by VARCHAR(32) NOT NULL DEFAULT '',
			price BIGINT NOT NULL DEFAULT 0,
			email VARCHAR(255) NOT NULL DEFAULT '',
			external_id VARCHAR(128) NOT NULL DEFAULT '',
			note TEXT,
			receipt VARCHAR(255) NOT NULL DEFAULT '',
			INDEX idx_access_code (access_code),
			INDEX idx_invite_url (invite_url),
			INDEX idx_group_status (group_id, status)
		)`,
		`CREATE TABLE IF NOT EXISTS revenue (
			id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
			link_id BIGINT NOT NULL,
			access_code VARCHAR(32) NOT NULL,
			group_id BIGINT NOT NULL,
			amount BIGINT NOT NULL,
			created_by VARCHAR(32) NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL,
			INDEX idx_revenue_code (access_code)
		)`,
	}
	for _, query := range tables {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	return nil
}

// EnsureAdmin seeds the bootstrap administrator; existing rows are kept.
func (s *MySql) EnsureAdmin(code, name string) error {
	if code == "" {
		return nil
	}
	_, err := s.db.Exec(`INSERT IGNORE INTO admins (code, name, active) VALUES (?, ?, 1)`, code, name)
	return err
}

func (s *MySql) GetAdmin(code string) (*entity.Admin, error) {
	stmt, err := s.stmtSelectAdmin()
	if err != nil {
		return nil, err
	}
	var admin entity.Admin
	var lastUsed sql.NullTime
	err = stmt.QueryRow(code).Scan(&admin.Code, &admin.Name, &admin.Active, &lastUsed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select admin: %w", err)
	}
	if lastUsed.Valid {
		admin.LastUsed = lastUsed.Time
	}
	return &admin, nil
}

func (s *MySql) TouchAdmin(code string) error {
	stmt, err := s.stmtTouchAdmin()
	if err != nil {
		return err
	}
	_, err = stmt.Exec(time.Now().UTC(), code)
	return err
}

func (s *MySql) GetReseller(code string) (*entity.Reseller, error) {
	stmt, err := s.stmtSelectReseller()
	if err != nil {
		return nil, err
	}
	var reseller entity.Reseller
	err = stmt.QueryRow(code).Scan(&reseller.Code, &reseller.Name, &reseller.Credits, &reseller.GroupId, &reseller.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select reseller: %w", err)
	}
	return &reseller, nil
}

// TryDebitCredit is the single atomic check-and-decrement of the credit
// ledger. Returns false when the reseller is missing, inactive or out of
// credit; the balance can never go negative.
func (s *MySql) TryDebitCredit(code string) (bool, error) {
	stmt, err := s.stmtDebitCredit()
	if err != nil {
		return false, err
	}
	result, err := stmt.Exec(code)
	if err != nil {
		return false, fmt.Errorf("debit credit: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// RefundCredit returns one credit after a failed issuance.
func (s *MySql) RefundCredit(code string) error {
	stmt, err := s.stmtCreditCredits()
	if err != nil {
		return err
	}
	_, err = stmt.Exec(int64(1), code)
	return err
}

// AddCredits is the unconditional admin top-up. Returns false when no
// reseller matches the code.
func (s *MySql) AddCredits(code string, amount int64) (bool, error) {
	stmt, err := s.stmtCreditCredits()
	if err != nil {
		return false, err
	}
	result, err := stmt.Exec(amount, code)
	if err != nil {
		return false, fmt.Errorf("add credits: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (s *MySql) InsertLink(link *entity.InviteLink) (int64, error) {
	stmt, err := s.stmtInsertLink()
	if err != nil {
		return 0, err
	}
	result, err := stmt.Exec(
		link.GroupId,
		link.GroupTitle,
		link.InviteURL,
		link.AccessCode,
		string(link.Status),
		link.CreatedAt,
		link.ExpiresAt,
		link.CreatedBy,
		link.Price,
		link.Email,
		link.ExternalId,
		link.Note,
		link.Receipt,
	)
	if err != nil {
		return 0, fmt.Errorf("insert link: %w", err)
	}
	return result.LastInsertId()
}

func (s *MySql) GetLink(id int64) (*entity.InviteLink, error) {
	stmt, err := s.stmtSelectLinkById()
	if err != nil {
		return nil, err
	}
	return s.scanLink(stmt.QueryRow(id))
}

// GetLinkByAccessCode returns the most recent link bound to the code.
func (s *MySql) GetLinkByAccessCode(code string) (*entity.InviteLink, error) {
	stmt, err := s.stmtSelectLinkByCode()
	if err != nil {
		return nil, err
	}
	return s.scanLink(stmt.QueryRow(code))
}

func (s *MySql) GetActiveLinkByAccessCode(code string) (*entity.InviteLink, error) {
	stmt, err := s.stmtSelectActiveLinkByCode()
	if err != nil {
		return nil, err
	}
	return s.scanLink(stmt.QueryRow(code))
}

// GetJoinableLinkByURL matches a link by its provider URL in a state the
// reconciler may still act on (active or used).
func (s *MySql) GetJoinableLinkByURL(url string) (*entity.InviteLink, error) {
	stmt, err := s.stmtSelectLinkByURL()
	if err != nil {
		return nil, err
	}
	return s.scanLink(stmt.QueryRow(url))
}

// GetLinkByURL matches the most recent link by its provider URL in any
// status. Used by the reconciler so a redelivered leave still finds the
// already-closed link instead of reporting an unmatched departure.
func (s *MySql) GetLinkByURL(url string) (*entity.InviteLink, error) {
	stmt, err := s.stmtSelectAnyLinkByURL()
	if err != nil {
		return nil, err
	}
	return s.scanLink(stmt.QueryRow(url))
}

// MostRecentUsedLink returns the latest link in the group marked used at
// or after the given time. Backing query for the reconciler's fallback
// heuristic.
func (s *MySql) MostRecentUsedLink(groupId int64, since time.Time) (*entity.InviteLink, error) {
	stmt, err := s.stmtSelectRecentUsedLink()
	if err != nil {
		return nil, err
	}
	return s.scanLink(stmt.QueryRow(groupId, since))
}

// TransitionLink applies a status-guarded conditional update: the row
// moves to the target status only if it is currently in one of the
// expected source statuses. Returns false when another writer got there
// first, which is how idempotent webhook redelivery becomes a no-op.
func (s *MySql) TransitionLink(id int64, from []entity.LinkStatus, to entity.LinkStatus) (bool, error) {
	if len(from) == 0 {
		return false, fmt.Errorf("transition link: empty source status list")
	}
	query := `UPDATE invite_links SET status = ? WHERE id = ? AND status IN (?` // first placeholder
	args := []interface{}{string(to), id, string(from[0])}
	for _, status := range from[1:] {
		query += ", ?"
		args = append(args, string(status))
	}
	query += ")"

	result, err := s.db.Exec(query, args...)
	if err != nil {
		return false, fmt.Errorf("transition link: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// MarkLinkUsed transitions active → used and stamps used_at in one
// conditional update.
func (s *MySql) MarkLinkUsed(id int64, usedAt time.Time) (bool, error) {
	stmt, err := s.stmtMarkLinkUsed()
	if err != nil {
		return false, err
	}
	result, err := stmt.Exec(usedAt, id)
	if err != nil {
		return false, fmt.Errorf("mark link used: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// RefreshLink re-activates a regenerated link with its new provider URL
// and expiry, guarded against the link having left a regenerable state.
func (s *MySql) RefreshLink(id int64, url string, expiresAt time.Time) (bool, error) {
	stmt, err := s.stmtRefreshLink()
	if err != nil {
		return false, err
	}
	result, err := stmt.Exec(url, expiresAt, id)
	if err != nil {
		return false, fmt.Errorf("refresh link: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// ExpireOverdueLinks sweeps active links past their expiry into the
// expired status. Returns the number of links expired.
func (s *MySql) ExpireOverdueLinks() (int64, error) {
	result, err := s.db.Exec(
		`UPDATE invite_links SET status = ? WHERE status = ? AND expires_at < ?`,
		string(entity.StatusExpired), string(entity.StatusActive), time.Now().UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("expire links: %w", err)
	}
	return result.RowsAffected()
}

func (s *MySql) DeleteLink(id int64) error {
	stmt, err := s.stmtDeleteLink()
	if err != nil {
		return err
	}
	_, err = stmt.Exec(id)
	return err
}

func (s *MySql) InsertRevenue(link *entity.InviteLink, actorCode string) error {
	stmt, err := s.stmtInsertRevenue()
	if err != nil {
		return err
	}
	_, err = stmt.Exec(link.Id, link.AccessCode, link.GroupId, link.Price, actorCode, time.Now().UTC())
	return err
}

// PurgeRevenueByCode removes all revenue records tied to an access code.
// Called on ban and on permanent delete.
func (s *MySql) PurgeRevenueByCode(code string) error {
	stmt, err := s.stmtPurgeRevenue()
	if err != nil {
		return err
	}
	_, err = stmt.Exec(code)
	return err
}

func (s *MySql) scanLink(row *sql.Row) (*entity.InviteLink, error) {
	var link entity.InviteLink
	var usedAt sql.NullTime
	var note sql.NullString
	err := row.Scan(
		&link.Id,
		&link.GroupId,
		&link.GroupTitle,
		&link.InviteURL,
		&link.AccessCode,
		&link.Status,
		&link.CreatedAt,
		&usedAt,
		&link.ExpiresAt,
		&link.CreatedBy,
		&link.Price,
		&link.Email,
		&link.ExternalId,
		&note,
		&link.Receipt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan link: %w", err)
	}
	if usedAt.Valid {
		link.UsedAt = usedAt.Time
	}
	if note.Valid {
		link.Note = note.String
	}
	return &link, nil
}
