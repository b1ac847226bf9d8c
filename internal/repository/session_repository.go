package repository

import (
	"context"
	"encoding/json"

	"uni-counselor/internal/models"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type SessionRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewSessionRepository(db *pgxpool.Pool, logger *zap.Logger) *SessionRepository {
	return &SessionRepository{
		db:     db,
		logger: logger,
	}
}

func (r *SessionRepository) CreateSession(ctx context.Context, session *models.CounselorSession) error {
	query := squirrel.Insert("counselor_sessions").
		Columns("id", "owner_profile_id", "title", "purpose", "created_at").
		Values(session.ID, session.OwnerProfileID, session.Title, session.Purpose, session.CreatedAt).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, sql, args...)
	return err
}

func (r *SessionRepository) GetSession(ctx context.Context, id uuid.UUID) (*models.CounselorSession, error) {
	query := squirrel.Select("id", "owner_profile_id", "title", "purpose", "created_at").
		From("counselor_sessions").
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	var session models.CounselorSession
	err = r.db.QueryRow(ctx, sql, args...).Scan(
		&session.ID, &session.OwnerProfileID, &session.Title, &session.Purpose, &session.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &session, nil
}

func (r *SessionRepository) ListSessions(ctx context.Context, profileID uuid.UUID) ([]*models.CounselorSession, error) {
	query := squirrel.Select("id", "owner_profile_id", "title", "purpose", "created_at").
		From("counselor_sessions").
		Where(squirrel.Eq{"owner_profile_id": profileID}).
		OrderBy("created_at DESC").
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*models.CounselorSession
	for rows.Next() {
		var session models.CounselorSession
		if err := rows.Scan(
			&session.ID, &session.OwnerProfileID, &session.Title, &session.Purpose, &session.CreatedAt,
		); err != nil {
			return nil, err
		}
		sessions = append(sessions, &session)
	}

	return sessions, nil
}

func (r *SessionRepository) UpdateTitle(ctx context.Context, id uuid.UUID, title string) error {
	query := squirrel.Update("counselor_sessions").
		Set("title", title).
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, sql, args...)
	return err
}

// AppendMessage inserts a message and lets the database assign the next
// sequence number. Seq is written back into the passed message.
func (r *SessionRepository) AppendMessage(ctx context.Context, msg *models.Message) error {
	sources, err := json.Marshal(msg.Sources)
	if err != nil {
		return err
	}

	query := squirrel.Insert("counselor_messages").
		Columns("id", "session_id", "sender", "text", "sources", "plan_updates", "created_at").
		Values(msg.ID, msg.SessionID, msg.Sender, msg.Text, sources, msg.PlanUpdates, msg.CreatedAt).
		Suffix("RETURNING seq").
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return err
	}

	return r.db.QueryRow(ctx, sql, args...).Scan(&msg.Seq)
}

// ListMessages returns the most recent limit messages in ascending sequence
// order. limit <= 0 returns the full transcript.
func (r *SessionRepository) ListMessages(ctx context.Context, sessionID uuid.UUID, limit int) ([]*models.Message, error) {
	query := squirrel.Select("id", "session_id", "seq", "sender", "text", "sources", "plan_updates", "created_at").
		From("counselor_messages").
		Where(squirrel.Eq{"session_id": sessionID}).
		OrderBy("seq DESC").
		PlaceholderFormat(squirrel.Dollar)
	if limit > 0 {
		query = query.Limit(uint64(limit))
	}

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []*models.Message
	for rows.Next() {
		var msg models.Message
		var sources []byte

		if err := rows.Scan(
			&msg.ID, &msg.SessionID, &msg.Seq, &msg.Sender, &msg.Text, &sources, &msg.PlanUpdates, &msg.CreatedAt,
		); err != nil {
			return nil, err
		}
		if len(sources) > 0 {
			if err := json.Unmarshal(sources, &msg.Sources); err != nil {
				r.logger.Warn("Dropping unreadable message sources", zap.String("message_id", msg.ID.String()), zap.Error(err))
			}
		}
		messages = append(messages, &msg)
	}

	// Flip from newest-first fetch order to transcript order
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}
