package mssql

import (
	"strings"
	"testing"
)

func TestBuildInsertDataSQL_BracketQuotingAndParams(t *testing.T) {
	q := buildInsertDataSQL()

	if !strings.Contains(q, "[string]") || !strings.Contains(q, "[numeric]") {
		t.Fatalf("value columns must be bracket-quoted: %s", q)
	}
	if !strings.Contains(q, "@p1") || !strings.Contains(q, "@p8") {
		t.Fatalf("expected @p1..@p8 params: %s", q)
	}
	if strings.Contains(q, "@p9") {
		t.Fatalf("too many params: %s", q)
	}
}

func TestBuildSetPublishedSQL_ParamNumbering(t *testing.T) {
	q, args := buildSetPublishedSQL([]string{"a", "b"}, false)

	if !strings.Contains(q, "WHERE slug IN (@p2, @p3)") {
		t.Fatalf("slug params wrong: %s", q)
	}
	if len(args) != 3 || args[0] != false || args[2] != "b" {
		t.Fatalf("args wrong: %v", args)
	}
}

func TestCreateDDL_GuardsExistence(t *testing.T) {
	for _, ddl := range createDDL() {
		if !strings.Contains(ddl, "IF ") {
			t.Fatalf("DDL must guard against existing objects:\n%s", ddl)
		}
	}
}

func TestMsIdent_EscapesBrackets(t *testing.T) {
	if got := msIdent("weird]name"); got != "[weird]]name]" {
		t.Fatalf("msIdent = %s", got)
	}
}
