package database

import (
	"database/sql"
	"fmt"
)

const linkColumns = `id, group_id, group_title, invite_url, access_code, status,
	created_at, used_at, expires_at, created_by, price, email, external_id, note, receipt`

func (s *MySql) prepareStmt(name, query string) (*sql.Stmt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if stmt, ok := s.statements[name]; ok {
		return stmt, nil
	}

	stmt, err := s.db.Prepare(query)
	if err != nil {
		return nil, fmt.Errorf("prepare statement [%s]: %w", name, err)
	}

	s.statements[name] = stmt
	return stmt, nil
}

func (s *MySql) closeStmt() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for name, stmt := range s.statements {
		_ = stmt.Close()
		delete(s.statements, name)
	}
}

func (s *MySql) stmtSelectAdmin() (*sql.Stmt, error) {
	query := `SELECT code, name, active, last_used FROM admins WHERE code = ?`
	return s.prepareStmt("selectAdmin", query)
}

func (s *MySql) stmtTouchAdmin() (*sql.Stmt, error) {
	query := `UPDATE admins SET last_used = ? WHERE code = ?`
	return s.prepareStmt("touchAdmin", query)
}

func (s *MySql) stmtSelectReseller() (*sql.Stmt, error) {
	query := `SELECT code, name, credits, group_id, active FROM resellers WHERE code = ?`
	return s.prepareStmt("selectReseller", query)
}

func (s *MySql) stmtDebitCredit() (*sql.Stmt, error) {
	// single atomic check-and-decrement; never read-then-write
	query := `UPDATE resellers SET credits = credits - 1
		WHERE code = ? AND active = 1 AND credits >= 1`
	return s.prepareStmt("debitCredit", query)
}

func (s *MySql) stmtCreditCredits() (*sql.Stmt, error) {
	query := `UPDATE resellers SET credits = credits + ? WHERE code = ?`
	return s.prepareStmt("creditCredits", query)
}

func (s *MySql) stmtInsertLink() (*sql.Stmt, error) {
	query := `INSERT INTO invite_links
		(group_id, group_title, invite_url, access_code, status,
		 created_at, expires_at, created_by, price, email, external_id, note, receipt)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	return s.prepareStmt("insertLink", query)
}

func (s *MySql) stmtSelectLinkById() (*sql.Stmt, error) {
	query := fmt.Sprintf(`SELECT %s FROM invite_links WHERE id = ?`, linkColumns)
	return s.prepareStmt("selectLinkById", query)
}

func (s *MySql) stmtSelectLinkByCode() (*sql.Stmt, error) {
	query := fmt.Sprintf(
		`SELECT %s FROM invite_links WHERE access_code = ? ORDER BY id DESC LIMIT 1`,
		linkColumns,
	)
	return s.prepareStmt("selectLinkByCode", query)
}

func (s *MySql) stmtSelectActiveLinkByCode() (*sql.Stmt, error) {
	query := fmt.Sprintf(
		`SELECT %s FROM invite_links WHERE access_code = ? AND status = 'active' ORDER BY id DESC LIMIT 1`,
		linkColumns,
	)
	return s.prepareStmt("selectActiveLinkByCode", query)
}

func (s *MySql) stmtSelectLinkByURL() (*sql.Stmt, error) {
	query := fmt.Sprintf(
		`SELECT %s FROM invite_links WHERE invite_url = ? AND status IN ('active', 'used') ORDER BY id DESC LIMIT 1`,
		linkColumns,
	)
	return s.prepareStmt("selectLinkByURL", query)
}

func (s *MySql) stmtSelectAnyLinkByURL() (*sql.Stmt, error) {
	query := fmt.Sprintf(
		`SELECT %s FROM invite_links WHERE invite_url = ? ORDER BY id DESC LIMIT 1`,
		linkColumns,
	)
	return s.prepareStmt("selectAnyLinkByURL", query)
}

func (s *MySql) stmtSelectRecentUsedLink() (*sql.Stmt, error) {
	query := fmt.Sprintf(
		`SELECT %s FROM invite_links
		WHERE group_id = ? AND status = 'used' AND used_at >= ?
		ORDER BY used_at DESC LIMIT 1`,
		linkColumns,
	)
	return s.prepareStmt("selectRecentUsedLink", query)
}

func (s *MySql) stmtMarkLinkUsed() (*sql.Stmt, error) {
	query := `UPDATE invite_links SET status = 'used', used_at = ?
		WHERE id = ? AND status = 'active'`
	return s.prepareStmt("markLinkUsed", query)
}

func (s *MySql) stmtRefreshLink() (*sql.Stmt, error) {
	query := `UPDATE invite_links SET status = 'active', invite_url = ?, expires_at = ?, used_at = NULL
		WHERE id = ? AND status IN ('revoked', 'banned', 'closed_by_provider')`
	return s.prepareStmt("refreshLink", query)
}

func (s *MySql) stmtDeleteLink() (*sql.Stmt, error) {
	query := `DELETE FROM invite_links WHERE id = ?`
	return s.prepareStmt("deleteLink", query)
}

func (s *MySql) stmtInsertRevenue() (*sql.Stmt, error) {
	query := `INSERT INTO revenue (link_id, access_code, group_id, amount, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`
	return s.prepareStmt("insertRevenue", query)
}

func (s *MySql) stmtPurgeRevenue() (*sql.Stmt, error) {
	query := `DELETE FROM revenue WHERE access_code = ?`
	return s.prepareStmt("purgeRevenue", query)
}
