package store

const schemaSQL = `
CREATE TABLE IF NOT EXISTS kv_state (
    namespace    TEXT NOT NULL,
    key          TEXT NOT NULL,
    value        TEXT NOT NULL,
    updated_at   TEXT NOT NULL,
    PRIMARY KEY (namespace, key)
);
`
