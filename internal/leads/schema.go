package leads

const schema = `
PRAGMA journal_mode = WAL;
PRAGMA synchronous = NORMAL;

CREATE TABLE IF NOT EXISTS leads (
    lead_id TEXT PRIMARY KEY,
    session_id TEXT NOT NULL,
    query TEXT NOT NULL,
    name TEXT,
    email TEXT NOT NULL DEFAULT '',
    phone TEXT NOT NULL DEFAULT '',
    instagram TEXT,
    website TEXT,
    domain TEXT,
    source TEXT,
    source_url TEXT NOT NULL DEFAULT '',
    snippet TEXT,
    extracted_at TEXT NOT NULL,
    UNIQUE (session_id, source_url, email, phone)
);

CREATE INDEX IF NOT EXISTS idx_leads_session ON leads(session_id);
CREATE INDEX IF NOT EXISTS idx_leads_domain ON leads(domain);
`
