package sqlite

import "database/sql"

// Schema for the local build target. In cloud deployments the ingestion
// pipeline owns the schema; this bootstrap exists so a local appview can run
// against an empty file.
const schema = `
CREATE TABLE IF NOT EXISTS posts (
    uri              TEXT PRIMARY KEY,
    cid              TEXT NOT NULL,
    author_did       TEXT NOT NULL,
    text             TEXT NOT NULL DEFAULT '',
    langs            TEXT NOT NULL DEFAULT '[]',
    embed_json       TEXT,
    reply_parent_uri TEXT,
    reply_root_uri   TEXT,
    created_at       TIMESTAMP NOT NULL,
    indexed_at       TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_posts_reply_root ON posts(reply_root_uri);

CREATE TABLE IF NOT EXISTS actors (
    did          TEXT PRIMARY KEY,
    handle       TEXT NOT NULL,
    display_name TEXT,
    description  TEXT,
    avatar_cid   TEXT,
    avatar_mime  TEXT,
    banner_cid   TEXT,
    banner_mime  TEXT,
    created_at   TIMESTAMP NOT NULL,
    indexed_at   TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_actors_handle ON actors(handle);

CREATE TABLE IF NOT EXISTS actor_stats (
    did             TEXT PRIMARY KEY,
    followers_count INTEGER NOT NULL DEFAULT 0,
    follows_count   INTEGER NOT NULL DEFAULT 0,
    posts_count     INTEGER NOT NULL DEFAULT 0,
    lists_count     INTEGER NOT NULL DEFAULT 0,
    feedgens_count  INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS post_aggregations (
    uri            TEXT PRIMARY KEY,
    like_count     INTEGER NOT NULL DEFAULT 0,
    repost_count   INTEGER NOT NULL DEFAULT 0,
    reply_count    INTEGER NOT NULL DEFAULT 0,
    quote_count    INTEGER NOT NULL DEFAULT 0,
    bookmark_count INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS labels (
    subject    TEXT NOT NULL,
    src        TEXT NOT NULL,
    val        TEXT NOT NULL,
    neg        INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_labels_subject ON labels(subject);

CREATE TABLE IF NOT EXISTS likes (
    uri         TEXT PRIMARY KEY,
    creator_did TEXT NOT NULL,
    subject_uri TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_likes_creator ON likes(creator_did, subject_uri);

CREATE TABLE IF NOT EXISTS reposts (
    uri         TEXT PRIMARY KEY,
    creator_did TEXT NOT NULL,
    subject_uri TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_reposts_creator ON reposts(creator_did, subject_uri);

CREATE TABLE IF NOT EXISTS bookmarks (
    creator_did TEXT NOT NULL,
    subject_uri TEXT NOT NULL,
    PRIMARY KEY (creator_did, subject_uri)
);

CREATE TABLE IF NOT EXISTS thread_mutes (
    creator_did TEXT NOT NULL,
    root_uri    TEXT NOT NULL,
    PRIMARY KEY (creator_did, root_uri)
);

CREATE TABLE IF NOT EXISTS follows (
    uri         TEXT PRIMARY KEY,
    creator_did TEXT NOT NULL,
    subject_did TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_follows_creator ON follows(creator_did, subject_did);
CREATE INDEX IF NOT EXISTS idx_follows_subject ON follows(subject_did);

CREATE TABLE IF NOT EXISTS blocks (
    uri         TEXT PRIMARY KEY,
    creator_did TEXT NOT NULL,
    subject_did TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_blocks_creator ON blocks(creator_did, subject_did);

CREATE TABLE IF NOT EXISTS mutes (
    creator_did TEXT NOT NULL,
    subject_did TEXT NOT NULL,
    PRIMARY KEY (creator_did, subject_did)
);

CREATE TABLE IF NOT EXISTS lists (
    uri        TEXT PRIMARY KEY,
    cid        TEXT NOT NULL,
    owner_did  TEXT NOT NULL,
    name       TEXT NOT NULL,
    purpose    TEXT NOT NULL,
    indexed_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS list_items (
    list_uri    TEXT NOT NULL,
    subject_did TEXT NOT NULL,
    PRIMARY KEY (list_uri, subject_did)
);

CREATE TABLE IF NOT EXISTS list_mutes (
    creator_did TEXT NOT NULL,
    list_uri    TEXT NOT NULL,
    PRIMARY KEY (creator_did, list_uri)
);

CREATE TABLE IF NOT EXISTS list_blocks (
    creator_did TEXT NOT NULL,
    list_uri    TEXT NOT NULL,
    PRIMARY KEY (creator_did, list_uri)
);

CREATE TABLE IF NOT EXISTS feed_items (
    post_uri   TEXT NOT NULL,
    repost_uri TEXT,
    actor_did  TEXT NOT NULL,
    sort_at    TIMESTAMP NOT NULL,
    PRIMARY KEY (post_uri, actor_did, sort_at)
);
CREATE INDEX IF NOT EXISTS idx_feed_items_actor ON feed_items(actor_did, sort_at DESC);

CREATE TABLE IF NOT EXISTS preferences (
    did        TEXT PRIMARY KEY,
    prefs_json TEXT NOT NULL
);
`

// EnsureSchema creates all tables when missing.
func EnsureSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
