package sqlclass

import "testing"

func TestClassify(t *testing.T) {
	cases := map[string]string{
		"select 1":                    "SELECT",
		"insert into t values (1)":    "INSERT",
		"BEGIN":                       "BEGIN",
		"commit":                      "COMMIT",
		"rollback to savepoint sp_1":  "ROLLBACK",
		"savepoint sp_1":              "SAVEPOINT",
		"release savepoint sp_1":      "RELEASE",
		"not valid sql at all !!!###": "OTHER",
	}
	for sql, want := range cases {
		if got := Classify(sql); got != want {
			t.Errorf("Classify(%q) = %q, want %q", sql, got, want)
		}
	}
}
