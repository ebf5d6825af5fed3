package database

const (
	// Account queries
	queryUpsertAccount = `
		INSERT INTO accounts (id, name, commission_percent)
		VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET active = 1, updated_at = CURRENT_TIMESTAMP
		RETURNING id, name, balance_rub, balance_usdt, commission_percent, active, created_at, updated_at`

	queryGetAccount = `
		SELECT id, name, balance_rub, balance_usdt, commission_percent, active, created_at, updated_at
		FROM accounts
		WHERE id = ?`

	queryGetAccountByName = `
		SELECT id, name, balance_rub, balance_usdt, commission_percent, active, created_at, updated_at
		FROM accounts
		WHERE name = ?`

	queryListAccounts = `
		SELECT id, name, balance_rub, balance_usdt, commission_percent, active, created_at, updated_at
		FROM accounts
		WHERE active = 1
		ORDER BY name`

	querySetCommission = `
		UPDATE accounts
		SET commission_percent = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`

	queryDeactivateAccount = `
		UPDATE accounts
		SET active = 0, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND active = 1`

	// The only sanctioned balance mutation: the sufficiency check and the
	// delta live in one guarded statement, so concurrent debits serialize
	// on the row and a violation simply affects zero rows.
	queryApplyDelta = `
		UPDATE accounts
		SET balance_rub = balance_rub + ?, balance_usdt = balance_usdt + ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND balance_rub + ? >= 0 AND balance_usdt + ? >= 0`

	queryAccountExists = `
		SELECT 1 FROM accounts WHERE id = ? LIMIT 1`

	queryGetBalances = `
		SELECT balance_rub, balance_usdt FROM accounts WHERE id = ?`

	// Operation queries
	queryInsertOperation = `
		INSERT INTO operations (
			operation_id, account_id, actor_user_id, actor_label, operation_type,
			amount, currency, exchange_rate, payer, file_ref, description, audit_note, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryGetOperation = `
		SELECT operation_id, account_id, actor_user_id, actor_label, operation_type,
		       amount, currency, exchange_rate, payer, file_ref, description, audit_note, created_at
		FROM operations
		WHERE operation_id = ?`

	queryUpdateOperation = `
		UPDATE operations
		SET amount = ?, exchange_rate = ?, payer = ?, description = ?, audit_note = ?, created_at = ?
		WHERE operation_id = ?`

	queryDeleteOperation = `
		DELETE FROM operations WHERE operation_id = ?`

	queryStampRate = `
		UPDATE operations
		SET exchange_rate = ?
		WHERE operation_id = ? AND exchange_rate IS NULL`

	queryUnratedChecks = `
		SELECT operation_id, account_id, actor_user_id, actor_label, operation_type,
		       amount, currency, exchange_rate, payer, file_ref, description, audit_note, created_at
		FROM operations
		WHERE operation_type = 'deposit_rub_check' AND exchange_rate IS NULL
		  AND created_at >= ? AND created_at < ?
		ORDER BY created_at`

	queryUnratedChecksForAccount = `
		SELECT operation_id, account_id, actor_user_id, actor_label, operation_type,
		       amount, currency, exchange_rate, payer, file_ref, description, audit_note, created_at
		FROM operations
		WHERE account_id = ? AND operation_type = 'deposit_rub_check' AND exchange_rate IS NULL
		  AND created_at >= ? AND created_at < ?
		ORDER BY created_at`

	queryOperationsByDateRange = `
		SELECT operation_id, account_id, actor_user_id, actor_label, operation_type,
		       amount, currency, exchange_rate, payer, file_ref, description, audit_note, created_at
		FROM operations
		WHERE created_at >= ? AND created_at < ?
		ORDER BY created_at DESC`

	queryCommissionTotal = `
		SELECT COALESCE(SUM(amount), 0)
		FROM operations
		WHERE account_id = ? AND operation_type = 'commission' AND currency = 'USDT'`

	queryCheckSummary = `
		SELECT o.account_id, a.name, COUNT(*), SUM(o.amount)
		FROM operations o
		JOIN accounts a ON a.id = o.account_id
		WHERE o.operation_type = 'deposit_rub_check' AND o.created_at >= ? AND o.created_at < ?
		GROUP BY o.account_id, a.name
		ORDER BY SUM(o.amount) DESC`

	// Rate queries
	queryUpsertRate = `
		INSERT INTO rates (exchange_date, rate)
		VALUES (?, ?)
		ON CONFLICT(exchange_date) DO UPDATE SET rate = excluded.rate`

	queryGetRate = `
		SELECT exchange_date, rate, created_at FROM rates WHERE exchange_date = ?`

	queryLatestRate = `
		SELECT exchange_date, rate, created_at FROM rates ORDER BY exchange_date DESC LIMIT 1`

	queryListRates = `
		SELECT exchange_date, rate, created_at FROM rates ORDER BY exchange_date DESC LIMIT ?`

	queryRatesInRange = `
		SELECT exchange_date, rate FROM rates WHERE exchange_date >= ? AND exchange_date <= ?`

	queryDeleteRate = `
		DELETE FROM rates WHERE exchange_date = ?`
)
