// Package sqlclass labels SQL text by statement shape for metrics and
// debug logging only. It is never consulted by the frontend filter's
// matching/rewriting logic, which stays narrow prefix/regex matching —
// this package exists purely so logs and metrics can say "a SELECT went
// by" instead of dumping raw SQL.
package sqlclass

import (
	pg_query "github.com/pganalyze/pg_query_go/v5"
)

// Classify returns a short label for the first statement in sql:
// SELECT, INSERT, UPDATE, DELETE, BEGIN, COMMIT, ROLLBACK, SAVEPOINT,
// RELEASE, SET, CREATE, DROP, or OTHER. Unparseable input also yields
// OTHER rather than an error, since this is advisory only.
func Classify(sql string) string {
	tree, err := pg_query.Parse(sql)
	if err != nil || tree == nil || len(tree.Stmts) == 0 {
		return "OTHER"
	}
	return classifyNode(tree.Stmts[0].GetStmt())
}

func classifyNode(stmt *pg_query.Node) string {
	if stmt == nil {
		return "OTHER"
	}
	switch {
	case stmt.GetSelectStmt() != nil:
		return "SELECT"
	case stmt.GetInsertStmt() != nil:
		return "INSERT"
	case stmt.GetUpdateStmt() != nil:
		return "UPDATE"
	case stmt.GetDeleteStmt() != nil:
		return "DELETE"
	case stmt.GetVariableSetStmt() != nil:
		return "SET"
	case stmt.GetCreateStmt() != nil:
		return "CREATE"
	case stmt.GetDropStmt() != nil:
		return "DROP"
	}

	if t := stmt.GetTransactionStmt(); t != nil {
		switch t.GetKind() {
		case pg_query.TransactionStmtKind_TRANS_STMT_BEGIN, pg_query.TransactionStmtKind_TRANS_STMT_START:
			return "BEGIN"
		case pg_query.TransactionStmtKind_TRANS_STMT_COMMIT:
			return "COMMIT"
		case pg_query.TransactionStmtKind_TRANS_STMT_ROLLBACK, pg_query.TransactionStmtKind_TRANS_STMT_ROLLBACK_TO:
			return "ROLLBACK"
		case pg_query.TransactionStmtKind_TRANS_STMT_SAVEPOINT:
			return "SAVEPOINT"
		case pg_query.TransactionStmtKind_TRANS_STMT_RELEASE:
			return "RELEASE"
		}
	}

	return "OTHER"
}
