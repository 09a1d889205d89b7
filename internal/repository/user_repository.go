package repository

import (
    "context"
    "database/sql"
    "errors"
    "fmt"
    "strings"
    "time"

    "github.com/atlasinsure/claims-api/internal/model"
    "github.com/atlasinsure/claims-api/internal/utils"
)

// UserRepo manages persistence for users.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

const userColumns = `id, email, password_hash, first_name, last_name, phone, role,
    is_active, address, preferences, last_login, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (model.User, error) {
    var (
        u         model.User
        phone     sql.NullString
        addr      []byte
        prefs     []byte
        lastLogin sql.NullTime
    )
    err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName,
        &phone, &u.Role, &u.IsActive, &addr, &prefs, &lastLogin, &u.CreatedAt, &u.UpdatedAt)
    if err != nil {
        return u, err
    }
    u.Phone = phone.String
    if err := unmarshalJSON(addr, &u.Address); err != nil {
        return u, err
    }
    if err := unmarshalJSON(prefs, &u.Preferences); err != nil {
        return u, err
    }
    if lastLogin.Valid {
        t := lastLogin.Time
        u.LastLogin = &t
    }
    return u, nil
}

// Create inserts a user and returns its ID.  The password is hashed here so
// plain text never crosses the repository boundary.
func (r *UserRepo) Create(ctx context.Context, u *model.User, password string, cost int) (uint64, error) {
    u.Email = strings.ToLower(strings.TrimSpace(u.Email))
    hash, err := utils.HashPassword(password, cost)
    if err != nil {
        return 0, err
    }
    addr, err := marshalJSON(u.Address)
    if err != nil {
        return 0, err
    }
    prefs, err := marshalJSON(u.Preferences)
    if err != nil {
        return 0, err
    }
    res, err := r.DB.ExecContext(ctx,
        `INSERT INTO users (email, password_hash, first_name, last_name, phone, role, address, preferences)
         VALUES (?,?,?,?,?,?,?,?)`,
        u.Email, hash, u.FirstName, u.LastName, u.Phone, u.Role, addr, prefs)
    if err != nil {
        // 1062 = MySQL duplicate entry
        if strings.Contains(strings.ToLower(err.Error()), "1062") {
            return 0, ErrEmailExists
        }
        return 0, err
    }
    id, err := res.LastInsertId()
    if err != nil {
        return 0, err
    }
    return uint64(id), nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
    email = strings.ToLower(strings.TrimSpace(email))
    row := r.DB.QueryRowContext(ctx,
        "SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", email)
    return scanUser(row)
}

// GetByID fetches a user by id.  Returns ErrUserNotFound for missing rows.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
    row := r.DB.QueryRowContext(ctx,
        "SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id)
    u, err := scanUser(row)
    if errors.Is(err, sql.ErrNoRows) {
        return u, ErrUserNotFound
    }
    return u, err
}

// UserListFilter narrows the admin user listing.
type UserListFilter struct {
    Role   string
    Search string
    Limit  int
    Offset int
}

// List returns users matching the filter plus the unpaginated total.
func (r *UserRepo) List(ctx context.Context, f UserListFilter) ([]model.User, int, error) {
    conds := []string{"1=1"}
    args := []any{}
    if f.Role != "" {
        conds = append(conds, "role = ?")
        args = append(args, f.Role)
    }
    if f.Search != "" {
        like := "%" + f.Search + "%"
        conds = append(conds, "(first_name LIKE ? OR last_name LIKE ? OR email LIKE ?)")
        args = append(args, like, like, like)
    }
    where := strings.Join(conds, " AND ")

    var total int
    if err := r.DB.QueryRowContext(ctx,
        "SELECT COUNT(*) FROM users WHERE "+where, args...).Scan(&total); err != nil {
        return nil, 0, err
    }

    q := fmt.Sprintf("SELECT %s FROM users WHERE %s ORDER BY created_at DESC LIMIT ? OFFSET ?",
        userColumns, where)
    rows, err := r.DB.QueryContext(ctx, q, append(args, f.Limit, f.Offset)...)
    if err != nil {
        return nil, 0, err
    }
    defer rows.Close()
    var out []model.User
    for rows.Next() {
        u, err := scanUser(rows)
        if err != nil {
            return nil, 0, err
        }
        out = append(out, u)
    }
    return out, total, rows.Err()
}

// ListAgents returns active agents ordered by name, for customer-facing
// agent selection.
func (r *UserRepo) ListAgents(ctx context.Context) ([]model.User, error) {
    rows, err := r.DB.QueryContext(ctx,
        "SELECT "+userColumns+" FROM users WHERE role=? AND is_active=1 ORDER BY first_name, last_name",
        model.RoleAgent)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var out []model.User
    for rows.Next() {
        u, err := scanUser(rows)
        if err != nil {
            return nil, err
        }
        out = append(out, u)
    }
    return out, rows.Err()
}

// UserUpdate carries the writable profile fields.  Role and IsActive are
// only honored when the caller is an admin; the handler enforces that by
// leaving them nil for everyone else.
type UserUpdate struct {
    FirstName *string
    LastName  *string
    Phone     *string
    Address   *model.Address
    Role      *string
    IsActive  *bool
}

// Update applies the non-nil fields of upd to the user row.
func (r *UserRepo) Update(ctx context.Context, id uint64, upd UserUpdate) error {
    sets := []string{}
    args := []any{}
    if upd.FirstName != nil {
        sets = append(sets, "first_name=?")
        args = append(args, *upd.FirstName)
    }
    if upd.LastName != nil {
        sets = append(sets, "last_name=?")
        args = append(args, *upd.LastName)
    }
    if upd.Phone != nil {
        sets = append(sets, "phone=?")
        args = append(args, *upd.Phone)
    }
    if upd.Address != nil {
        b, err := marshalJSON(*upd.Address)
        if err != nil {
            return err
        }
        sets = append(sets, "address=?")
        args = append(args, b)
    }
    if upd.Role != nil {
        sets = append(sets, "role=?")
        args = append(args, *upd.Role)
    }
    if upd.IsActive != nil {
        sets = append(sets, "is_active=?")
        args = append(args, *upd.IsActive)
    }
    if len(sets) == 0 {
        return nil
    }
    args = append(args, id)
    res, err := r.DB.ExecContext(ctx,
        "UPDATE users SET "+strings.Join(sets, ", ")+" WHERE id=?", args...)
    if err != nil {
        return err
    }
    return mustAffect(res, ErrUserNotFound)
}

// UpdatePreferences replaces the preferences document of a user.
func (r *UserRepo) UpdatePreferences(ctx context.Context, id uint64, p model.Preferences) error {
    b, err := marshalJSON(p)
    if err != nil {
        return err
    }
    res, err := r.DB.ExecContext(ctx, "UPDATE users SET preferences=? WHERE id=?", b, id)
    if err != nil {
        return err
    }
    return mustAffect(res, ErrUserNotFound)
}

// SetActive flips the is_active flag.  Deactivation is the soft-delete path.
func (r *UserRepo) SetActive(ctx context.Context, id uint64, active bool) error {
    res, err := r.DB.ExecContext(ctx, "UPDATE users SET is_active=? WHERE id=?", active, id)
    if err != nil {
        return err
    }
    return mustAffect(res, ErrUserNotFound)
}

// Delete removes the user row.  Admin-only; the normal flow deactivates
// instead.
func (r *UserRepo) Delete(ctx context.Context, id uint64) error {
    res, err := r.DB.ExecContext(ctx, "DELETE FROM users WHERE id=?", id)
    if err != nil {
        return err
    }
    return mustAffect(res, ErrUserNotFound)
}

// TouchLastLogin stamps a successful login.
func (r *UserRepo) TouchLastLogin(ctx context.Context, id uint64, at time.Time) error {
    _, err := r.DB.ExecContext(ctx, "UPDATE users SET last_login=? WHERE id=?", at, id)
    return err
}

// CountByRole groups all users by role.
func (r *UserRepo) CountByRole(ctx context.Context) (map[string]int, error) {
    rows, err := r.DB.QueryContext(ctx, "SELECT role, COUNT(*) FROM users GROUP BY role")
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    out := map[string]int{}
    for rows.Next() {
        var role string
        var n int
        if err := rows.Scan(&role, &n); err != nil {
            return nil, err
        }
        out[role] = n
    }
    return out, rows.Err()
}

// RecentUsers returns the most recently updated users for admin feeds.
func (r *UserRepo) RecentUsers(ctx context.Context, limit int) ([]model.User, error) {
    rows, err := r.DB.QueryContext(ctx,
        "SELECT "+userColumns+" FROM users ORDER BY updated_at DESC LIMIT ?", limit)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var out []model.User
    for rows.Next() {
        u, err := scanUser(rows)
        if err != nil {
            return nil, err
        }
        out = append(out, u)
    }
    return out, rows.Err()
}

// mustAffect converts a zero-row UPDATE/DELETE into notFound.
func mustAffect(res sql.Result, notFound error) error {
    n, err := res.RowsAffected()
    if err != nil {
        return err
    }
    if n == 0 {
        return notFound
    }
    return nil
}
