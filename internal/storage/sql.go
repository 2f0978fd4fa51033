package storage

import (
	_ "embed"
)

const (
	insertSessionSQL = `
INSERT INTO sessions (
                      start_time,
                      node_id,
                      config)
VALUES (CURRENT_TIMESTAMP, ?, ?)`

	selectSessionSQL = `
SELECT
    id,
    start_time,
    node_id,
    config
FROM sessions
WHERE
    id = ?`

	selectSessionsSQL = `
SELECT
    id,
    start_time,
    node_id,
    config
FROM sessions
ORDER BY start_time, id`

	insertCycleSQL = `
INSERT INTO cycles (session_id,
                    timestamp,
                    record,
                    posted,
                    end_loop)
VALUES (?, ?, ?, ?, ?)`

	selectCyclesSQL = `
SELECT
    id,
    session_id,
    timestamp,
    record,
    posted,
    end_loop
FROM cycles
WHERE
    session_id = ?`
)

//go:embed schema.sql
var initSchemaSQL string
