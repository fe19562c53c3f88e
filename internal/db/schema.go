package db

// SchemaSQL defines the artifact table. Each record is keyed by the artifact's
// relative path, so writes are idempotent upserts.
const SchemaSQL = `
    DEFINE TABLE IF NOT EXISTS artifact SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS kind ON artifact TYPE string;
    DEFINE FIELD IF NOT EXISTS employee_id ON artifact TYPE int DEFAULT 0;
    DEFINE FIELD IF NOT EXISTS cohort ON artifact TYPE bool DEFAULT false;
    DEFINE FIELD IF NOT EXISTS run_id ON artifact TYPE string DEFAULT "";
    DEFINE FIELD IF NOT EXISTS payload ON artifact TYPE string;
    DEFINE FIELD IF NOT EXISTS updated ON artifact TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS artifact_kind_cohort ON artifact FIELDS kind, cohort;
`
