package storage

const schema = `
CREATE TABLE IF NOT EXISTS accessories (
	id UUID PRIMARY KEY,
	slug TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL,
	category TEXT NOT NULL DEFAULT 'other',
	price_points INTEGER NOT NULL DEFAULT 0 CHECK (price_points >= 0),
	image_url TEXT NOT NULL DEFAULT '',
	metadata JSONB NOT NULL DEFAULT '{}',
	unlock_requirement JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS user_accessories (
	id UUID PRIMARY KEY,
	user_id TEXT NOT NULL,
	accessory_id UUID NOT NULL REFERENCES accessories(id),
	slot TEXT NOT NULL,
	is_equipped BOOLEAN NOT NULL DEFAULT FALSE,
	equipped_at TIMESTAMPTZ,
	custom_metadata JSONB,
	purchased_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (user_id, accessory_id)
);

CREATE INDEX IF NOT EXISTS user_accessories_slot_idx
	ON user_accessories (user_id, slot) WHERE is_equipped;

CREATE TABLE IF NOT EXISTS student_point_transactions (
	id UUID PRIMARY KEY,
	student_id TEXT NOT NULL,
	delta INTEGER NOT NULL,
	reason TEXT NOT NULL,
	metadata JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS student_point_transactions_student_idx
	ON student_point_transactions (student_id, created_at DESC);

CREATE TABLE IF NOT EXISTS students_score (
	id UUID PRIMARY KEY,
	student_id TEXT NOT NULL,
	score INTEGER NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS student_achievements (
	student_id TEXT NOT NULL,
	achievement_id TEXT NOT NULL,
	points INTEGER NOT NULL DEFAULT 0,
	earned_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (student_id, achievement_id)
);

CREATE TABLE IF NOT EXISTS student_progress (
	student_id TEXT PRIMARY KEY,
	games_played INTEGER NOT NULL DEFAULT 0,
	current_streak INTEGER NOT NULL DEFAULT 0,
	perfect_games INTEGER NOT NULL DEFAULT 0,
	level INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS student_equipped_cache (
	student_id TEXT PRIMARY KEY,
	payload JSONB NOT NULL DEFAULT '[]',
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`
