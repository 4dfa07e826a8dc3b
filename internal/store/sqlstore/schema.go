package sqlstore

type dialect struct {
	name string
	// bigint wraps an aggregate so both drivers return a plain integer.
	bigint func(expr string) string
	schema []string
}

// window appends LIMIT/OFFSET for a ledger page. A zero limit means no cap;
// MySQL only accepts OFFSET after a LIMIT, so it gets the largest one.
func (d dialect) window(query string, args []any, offset, limit int) (string, []any) {
	switch {
	case limit > 0:
		query += "\n\t\tLIMIT ?"
		args = append(args, limit)
	case offset > 0 && d.name == DriverMySQL:
		query += "\n\t\tLIMIT 18446744073709551615"
	}
	if offset > 0 {
		query += " OFFSET ?"
		args = append(args, offset)
	}
	return query, args
}

// ignorableDDL skips "index already exists" on engines without
// CREATE INDEX IF NOT EXISTS.
func (d dialect) ignorableDDL(err error) bool {
	return d.name == DriverMySQL && isDuplicate(err)
}

var postgresDialect = dialect{
	name:   DriverPostgres,
	bigint: func(expr string) string { return "CAST(COALESCE(" + expr + ", 0) AS BIGINT)" },
	schema: []string{
		`CREATE TABLE IF NOT EXISTS batches (
			id TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			color TEXT NOT NULL,
			size TEXT NOT NULL,
			quantity INTEGER NOT NULL CHECK (quantity >= 0),
			inward_rate BIGINT NOT NULL CHECK (inward_rate >= 0),
			selling_rate BIGINT NOT NULL CHECK (selling_rate >= 0),
			barcode TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			last_updated TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_batches_variant ON batches (type, color, size)`,
		`CREATE INDEX IF NOT EXISTS idx_batches_barcode ON batches (barcode)`,
		`CREATE TABLE IF NOT EXISTS transactions (
			id TEXT PRIMARY KEY,
			inventory_id TEXT NOT NULL REFERENCES batches (id),
			type TEXT NOT NULL CHECK (type IN ('inward', 'outward')),
			quantity INTEGER NOT NULL CHECK (quantity > 0),
			rate BIGINT NOT NULL,
			discount BIGINT NOT NULL DEFAULT 0,
			remark TEXT NOT NULL DEFAULT '',
			barcode TEXT NOT NULL DEFAULT '',
			profit BIGINT NULL,
			sale_id TEXT NOT NULL DEFAULT '',
			date TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_date ON transactions (date DESC, id DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_inventory ON transactions (inventory_id)`,
	},
}

var mysqlDialect = dialect{
	name:   DriverMySQL,
	bigint: func(expr string) string { return "CAST(COALESCE(" + expr + ", 0) AS SIGNED)" },
	schema: []string{
		`CREATE TABLE IF NOT EXISTS batches (
			id VARCHAR(64) NOT NULL PRIMARY KEY,
			type VARCHAR(100) NOT NULL,
			color VARCHAR(100) NOT NULL,
			size VARCHAR(50) NOT NULL,
			quantity INT NOT NULL,
			inward_rate BIGINT NOT NULL,
			selling_rate BIGINT NOT NULL,
			barcode VARCHAR(64) NOT NULL,
			created_at DATETIME(6) NOT NULL,
			last_updated DATETIME(6) NOT NULL,
			CONSTRAINT chk_batches_quantity CHECK (quantity >= 0),
			INDEX idx_batches_variant (type, color, size),
			INDEX idx_batches_barcode (barcode)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		`CREATE TABLE IF NOT EXISTS transactions (
			id VARCHAR(64) NOT NULL PRIMARY KEY,
			inventory_id VARCHAR(64) NOT NULL,
			type VARCHAR(16) NOT NULL,
			quantity INT NOT NULL,
			rate BIGINT NOT NULL,
			discount BIGINT NOT NULL DEFAULT 0,
			remark VARCHAR(500) NOT NULL DEFAULT '',
			barcode VARCHAR(64) NOT NULL DEFAULT '',
			profit BIGINT NULL,
			sale_id VARCHAR(64) NOT NULL DEFAULT '',
			date DATETIME(6) NOT NULL,
			CONSTRAINT chk_transactions_quantity CHECK (quantity > 0),
			INDEX idx_transactions_date (date, id),
			INDEX idx_transactions_inventory (inventory_id),
			CONSTRAINT fk_transactions_batch FOREIGN KEY (inventory_id) REFERENCES batches (id)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	},
}
