package store

import (
	"context"

	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

// Table and column names.
const (
	tableChildren      = "children"
	tableSessions      = "sessions"
	tableSessionLocks  = "session_locks"
	tableQuestions     = "questions"
	tableProgress      = "progress"
	tableProgressTopic = "progress_topics"
	tableLessons       = "lessons"
	tableNotifications = "notifications"
	tableLLMEvents     = "llm_request_events"
)

func idColumn() *schema.Column {
	return &schema.Column{Name: "id", Type: field.TypeString, Size: 64}
}

func str(name string, nullable bool) *schema.Column {
	return &schema.Column{Name: name, Type: field.TypeString, Size: 255, Nullable: nullable}
}

func text(name string) *schema.Column {
	return &schema.Column{Name: name, Type: field.TypeString, Size: 1<<24 - 1, Nullable: true}
}

func integer(name string) *schema.Column {
	return &schema.Column{Name: name, Type: field.TypeInt, Default: 0}
}

func timestamp(name string, nullable bool) *schema.Column {
	return &schema.Column{Name: name, Type: field.TypeTime, Nullable: nullable}
}

var (
	childrenTable = schema.NewTable(tableChildren).
			AddPrimary(idColumn()).
			AddColumn(str("guardian_id", false)).
			AddColumn(str("name", false)).
			AddColumn(str("age_group", false)).
			AddColumn(text("learning_focus")).
			AddColumn(text("interests")).
			AddColumn(&schema.Column{Name: "active", Type: field.TypeBool, Default: true}).
			AddColumn(timestamp("created_at", false)).
			AddColumn(timestamp("updated_at", false)).
			AddIndex("children_guardian_id", false, []string{"guardian_id"})

	sessionsTable = schema.NewTable(tableSessions).
			AddPrimary(idColumn()).
			AddColumn(str("child_id", false)).
			AddColumn(str("guardian_id", false)).
			AddColumn(str("status", false)).
			AddColumn(str("stage", false)).
			AddColumn(integer("incorrect_streak")).
			AddColumn(integer("total_incorrect")).
			AddColumn(str("current_question_id", true)).
			AddColumn(str("trigger_type", false)).
			AddColumn(timestamp("started_at", false)).
			AddColumn(timestamp("locked_at", true)).
			AddColumn(timestamp("unlocked_at", true)).
			AddColumn(timestamp("completed_at", true)).
			AddColumn(str("unlocked_by", true)).
			AddIndex("sessions_child_id_status", false, []string{"child_id", "status"})

	// sessionLocksTable holds one row per child with a non-terminal session.
	// The primary key on child_id turns session creation into a conditional
	// insert.
	sessionLocksTable = schema.NewTable(tableSessionLocks).
				AddPrimary(&schema.Column{Name: "child_id", Type: field.TypeString, Size: 64}).
				AddColumn(str("session_id", false)).
				AddColumn(timestamp("acquired_at", false))

	questionsTable = schema.NewTable(tableQuestions).
			AddPrimary(idColumn()).
			AddColumn(str("session_id", false)).
			AddColumn(str("child_id", false)).
			AddColumn(str("topic", false)).
			AddColumn(text("text")).
			AddColumn(text("options")).
			AddColumn(str("correct_answer", false)).
			AddColumn(str("child_answer", true)).
			AddColumn(&schema.Column{Name: "is_correct", Type: field.TypeBool, Nullable: true}).
			AddColumn(timestamp("answered_at", true)).
			AddColumn(integer("attempt_number")).
			AddColumn(str("source", false)).
			AddColumn(str("status", true)).
			AddColumn(timestamp("created_at", false)).
			AddIndex("questions_child_id_status", false, []string{"child_id", "status"}).
			AddIndex("questions_session_id", false, []string{"session_id"})

	progressTable = schema.NewTable(tableProgress).
			AddPrimary(idColumn()).
			AddColumn(str("child_id", false)).
			AddColumn(&schema.Column{Name: "date", Type: field.TypeString, Size: 10}).
			AddColumn(integer("total_questions")).
			AddColumn(integer("correct_answers")).
			AddColumn(integer("incorrect_answers")).
			AddColumn(integer("sessions_completed")).
			AddColumn(integer("sessions_locked_out")).
			AddColumn(integer("time_spent_seconds")).
			AddColumn(timestamp("created_at", false)).
			AddColumn(timestamp("updated_at", false)).
			AddIndex("progress_child_id_date", true, []string{"child_id", "date"})

	progressTopicsTable = schema.NewTable(tableProgressTopic).
				AddPrimary(idColumn()).
				AddColumn(str("child_id", false)).
				AddColumn(&schema.Column{Name: "date", Type: field.TypeString, Size: 10}).
				AddColumn(&schema.Column{Name: "topic", Type: field.TypeString, Size: 64}).
				AddColumn(integer("correct")).
				AddColumn(integer("incorrect")).
				AddIndex("progress_topics_child_id_date_topic", true, []string{"child_id", "date", "topic"})

	lessonsTable = schema.NewTable(tableLessons).
			AddPrimary(idColumn()).
			AddColumn(str("session_id", false)).
			AddColumn(str("child_id", false)).
			AddColumn(str("topic", false)).
			AddColumn(str("trigger_question_id", true)).
			AddColumn(str("title", false)).
			AddColumn(text("description")).
			AddColumn(text("objectives")).
			AddColumn(text("activities")).
			AddColumn(integer("duration_seconds")).
			AddColumn(integer("watch_count")).
			AddColumn(str("source", false)).
			AddColumn(timestamp("created_at", false)).
			AddIndex("lessons_session_id", false, []string{"session_id"})

	notificationsTable = schema.NewTable(tableNotifications).
				AddPrimary(idColumn()).
				AddColumn(str("guardian_id", false)).
				AddColumn(str("child_id", false)).
				AddColumn(str("session_id", true)).
				AddColumn(str("type", false)).
				AddColumn(str("title", false)).
				AddColumn(text("body")).
				AddColumn(timestamp("sent_at", false)).
				AddColumn(&schema.Column{Name: "delivered", Type: field.TypeBool, Default: false}).
				AddIndex("notifications_guardian_id", false, []string{"guardian_id"})

	llmEventsTable = schema.NewTable(tableLLMEvents).
			AddPrimary(&schema.Column{Name: "id", Type: field.TypeInt, Increment: true}).
			AddColumn(timestamp("timestamp", false)).
			AddColumn(str("provider", false)).
			AddColumn(str("model", false)).
			AddColumn(str("purpose", false)).
			AddColumn(integer("input_tokens")).
			AddColumn(integer("output_tokens")).
			AddColumn(&schema.Column{Name: "latency_ms", Type: field.TypeInt64, Default: 0}).
			AddColumn(&schema.Column{Name: "success", Type: field.TypeBool}).
			AddColumn(text("error_message")).
			AddColumn(text("request_body")).
			AddColumn(text("response_body"))

	// tables lists every table created by migrate.
	tables = []*schema.Table{
		childrenTable,
		sessionsTable,
		sessionLocksTable,
		questionsTable,
		progressTable,
		progressTopicsTable,
		lessonsTable,
		notificationsTable,
		llmEventsTable,
	}
)

// migrate creates missing tables and columns. It never drops anything.
func migrate(ctx context.Context, drv dialect.Driver) error {
	m, err := schema.NewMigrate(drv)
	if err != nil {
		return err
	}
	return m.Create(ctx, tables...)
}
