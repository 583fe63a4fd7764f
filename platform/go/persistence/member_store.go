package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/wilsonllucena/igreja-conciliada/platform/go/tenant"
)

const MembersTable = "members"

// Member represents a row in the members table.
type Member struct {
	ID          uuid.UUID  `db:"id"`
	TenantID    uuid.UUID  `db:"tenant_id"`
	Name        string     `db:"name"`
	Email       string     `db:"email"`
	Phone       string     `db:"phone"`
	Address     *string    `db:"address"`
	DateOfBirth *time.Time `db:"date_of_birth"`
	Groups      []string   `db:"groups"`
	Status      string     `db:"status"`
	JoinedAt    time.Time  `db:"joined_at"`
	CreatedAt   time.Time  `db:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at"`
}

const memberColumns = "id, tenant_id, name, email, phone, address, date_of_birth, groups, status::text, joined_at, created_at, updated_at"

// CreateMemberParams captures the fields required to insert a member.
// Nil optional fields take the column defaults.
type CreateMemberParams struct {
	ID          uuid.UUID
	Name        string
	Email       string
	Phone       string
	Address     *string
	DateOfBirth *time.Time
	Groups      []string
	Status      *string
	JoinedAt    *time.Time
}

// UpdateMemberParams holds the editable fields; nil fields are left untouched.
type UpdateMemberParams struct {
	Name        *string
	Email       *string
	Phone       *string
	Address     *string
	DateOfBirth *time.Time
	Groups      *[]string
	Status      *string
	JoinedAt    *time.Time
}

// MemberStore exposes persistence helpers for the members table.
type MemberStore struct {
	db *TenantDB
}

func NewMemberStore(db *TenantDB) *MemberStore {
	if db == nil {
		panic("member store requires TenantDB")
	}
	return &MemberStore{db: db}
}

// CreateMember inserts a member into the scope's tenant.
func (s *MemberStore) CreateMember(ctx context.Context, scope tenant.Scope, params CreateMemberParams) (Member, error) {
	created, err := s.CreateMembers(ctx, scope, []CreateMemberParams{params})
	if err != nil {
		return Member{}, err
	}
	return created[0], nil
}

// CreateMembers inserts every row in a single transaction.
func (s *MemberStore) CreateMembers(ctx context.Context, scope tenant.Scope, params []CreateMemberParams) ([]Member, error) {
	if len(params) == 0 {
		return []Member{}, nil
	}

	out := make([]Member, 0, len(params))
	err := s.db.WithTenant(ctx, scope, func(tx pgx.Tx) error {
		for _, p := range params {
			if p.ID == uuid.Nil {
				p.ID = uuid.New()
			}
			ins := newInsertBuilder()
			ins.value("id", p.ID)
			ins.value("tenant_id", scope.TenantID)
			ins.value("name", strings.TrimSpace(p.Name))
			ins.value("email", strings.ToLower(strings.TrimSpace(p.Email)))
			ins.value("phone", strings.TrimSpace(p.Phone))
			insertOptional(ins, "address", p.Address, "")
			insertOptional(ins, "date_of_birth", p.DateOfBirth, "date")
			if p.Groups != nil {
				ins.value("groups", p.Groups)
			}
			insertOptional(ins, "status", p.Status, "member_status")
			insertOptional(ins, "joined_at", p.JoinedAt, "date")

			row := tx.QueryRow(ctx, fmt.Sprintf(`
                INSERT INTO %s (%s) VALUES (%s)
                RETURNING %s
            `, MembersTable, ins.columns(), ins.values(), memberColumns), ins.args...)

			m, err := scanMember(row)
			if err != nil {
				return err
			}
			out = append(out, m)
		}
		return nil
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("create members: %w", err)
	}
	return out, nil
}

// ListMembers returns the tenant's members, newest first.
func (s *MemberStore) ListMembers(ctx context.Context, scope tenant.Scope) ([]Member, error) {
	query := fmt.Sprintf(`
        SELECT %s FROM %s
        WHERE tenant_id = $1
        ORDER BY created_at DESC
    `, memberColumns, MembersTable)

	members := make([]Member, 0)
	err := s.db.WithTenant(ctx, scope, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query, scope.TenantID)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			m, scanErr := scanMember(rows)
			if scanErr != nil {
				return fmt.Errorf("scan member: %w", scanErr)
			}
			members = append(members, m)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	return members, nil
}

// GetMember returns one member of the tenant.
func (s *MemberStore) GetMember(ctx context.Context, scope tenant.Scope, id uuid.UUID) (Member, error) {
	var out Member
	err := s.db.WithTenant(ctx, scope, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1 AND tenant_id = $2`, memberColumns, MembersTable), id, scope.TenantID)
		var scanErr error
		out, scanErr = scanMember(row)
		return scanErr
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Member{}, ErrNotFound
		}
		return Member{}, fmt.Errorf("get member: %w", err)
	}
	return out, nil
}

// UpdateMember applies the provided fields. tenant_id is never updated.
func (s *MemberStore) UpdateMember(ctx context.Context, scope tenant.Scope, id uuid.UUID, params UpdateMemberParams) (Member, error) {
	set := newSetBuilder()
	set.add("name", params.Name)
	if params.Email != nil {
		email := strings.ToLower(*params.Email)
		set.add("email", &email)
	}
	set.add("phone", params.Phone)
	set.add("address", params.Address)
	setOptional(set, "date_of_birth", params.DateOfBirth)
	setOptional(set, "groups", params.Groups)
	set.cast("status", params.Status, "member_status")
	setOptional(set, "joined_at", params.JoinedAt)
	if set.empty() {
		return Member{}, errors.New("no fields to update")
	}

	args := append(set.args, id, scope.TenantID)
	query := fmt.Sprintf(`
        UPDATE %s
        SET %s, updated_at = NOW()
        WHERE id = $%d AND tenant_id = $%d
        RETURNING %s
    `, MembersTable, set.sql(), len(args)-1, len(args), memberColumns)

	var out Member
	err := s.db.WithTenant(ctx, scope, func(tx pgx.Tx) error {
		var scanErr error
		out, scanErr = scanMember(tx.QueryRow(ctx, query, args...))
		return scanErr
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Member{}, ErrNotFound
		}
		return Member{}, fmt.Errorf("update member: %w", err)
	}
	return out, nil
}

// DeleteMember removes a member. Appointments referencing it are left untouched.
func (s *MemberStore) DeleteMember(ctx context.Context, scope tenant.Scope, id uuid.UUID) error {
	return deleteScoped(ctx, s.db, scope, MembersTable, id)
}

// CountActiveMembers counts the tenant's active members.
func (s *MemberStore) CountActiveMembers(ctx context.Context, scope tenant.Scope) (int, error) {
	return countScoped(ctx, s.db, scope, MembersTable, "status = 'active'")
}

func scanMember(row pgx.Row) (Member, error) {
	var m Member
	if err := row.Scan(&m.ID, &m.TenantID, &m.Name, &m.Email, &m.Phone, &m.Address, &m.DateOfBirth, &m.Groups, &m.Status, &m.JoinedAt, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return Member{}, err
	}
	return m, nil
}

func deleteScoped(ctx context.Context, db *TenantDB, scope tenant.Scope, table string, id uuid.UUID) error {
	var affected int64
	err := db.WithTenant(ctx, scope, func(tx pgx.Tx) error {
		tag, execErr := tx.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1 AND tenant_id = $2`, table), id, scope.TenantID)
		affected = tag.RowsAffected()
		return execErr
	})
	if err != nil {
		return fmt.Errorf("delete from %s: %w", table, err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func countScoped(ctx context.Context, db *TenantDB, scope tenant.Scope, table, where string, args ...any) (int, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE tenant_id = $1`, table)
	if where != "" {
		query += " AND " + where
	}

	var total int
	err := db.WithTenant(ctx, scope, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, query, append([]any{scope.TenantID}, args...)...).Scan(&total)
	})
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return total, nil
}
