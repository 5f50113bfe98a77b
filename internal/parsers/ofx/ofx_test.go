package ofx

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rumor-ml/commons.systems/treasury/internal/parser"
)

const bankStatementFixture = `OFXHEADER:100
DATA:OFXSGML
VERSION:102
SECURITY:NONE
ENCODING:USASCII
CHARSET:1252
COMPRESSION:NONE
OLDFILEUID:NONE
NEWFILEUID:NONE

<OFX>
<SIGNONMSGSRSV1>
<SONRS>
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<DTSERVER>20250301120000
<LANGUAGE>POR
<FI>
<ORG>ARBI
<FID>54321
</FI>
</SONRS>
</SIGNONMSGSRSV1>
<BANKMSGSRSV1>
<STMTTRNRS>
<TRNUID>1
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<STMTRS>
<CURDEF>BRL
<BANKACCTFROM>
<BANKID>213
<ACCTID>12345-6
<ACCTTYPE>CHECKING
</BANKACCTFROM>
<BANKTRANLIST>
<DTSTART>20250301000000
<DTEND>20250331235959
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20250305120000
<TRNAMT>-50.00
<FITID>TXN001
<NAME>Tarifa bancaria
</STMTTRN>
<STMTTRN>
<TRNTYPE>CREDIT
<DTPOSTED>20250315120000
<TRNAMT>1000.00
<FITID>TXN002
<NAME>TED recebida
</STMTTRN>
</BANKTRANLIST>
<LEDGERBAL>
<BALAMT>2000.00
<DTASOF>20250331235959
</LEDGERBAL>
</STMTRS>
</STMTTRNRS>
</BANKMSGSRSV1>
</OFX>`

func TestParseBankStatement(t *testing.T) {
	stmt, err := NewParser().Parse(context.Background(), strings.NewReader(bankStatementFixture), nil)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}

	if len(stmt.Transactions) != 2 {
		t.Fatalf("got %d transactions, want 2", len(stmt.Transactions))
	}
	if got := stmt.Transactions[0].Amount(); got != -50.00 {
		t.Errorf("debit amount = %v, want -50.00 (OFX amounts arrive signed)", got)
	}
	if got := stmt.Transactions[1].Description(); got != "TED recebida" {
		t.Errorf("description = %q, want %q", got, "TED recebida")
	}
	if got := stmt.Transactions[0].Date().Format("2006-01-02"); got != "2025-03-05" {
		t.Errorf("date = %s, want 2025-03-05", got)
	}

	if len(stmt.Balances) != 1 {
		t.Fatalf("got %d balances, want 1 (ledger balance)", len(stmt.Balances))
	}
	if got := stmt.Balances[0].Opening(); got != 2000.00 {
		t.Errorf("ledger balance = %v, want 2000.00", got)
	}
}

func TestParseRejectsNonOFX(t *testing.T) {
	_, err := NewParser().Parse(context.Background(), strings.NewReader("definitely not ofx"), nil)
	if !errors.Is(err, parser.ErrUnrecognizedLayout) {
		t.Errorf("got error %v, want ErrUnrecognizedLayout", err)
	}
}

func TestCanParse(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		header   string
		expected bool
	}{
		{
			name:     "ofx with sgml header",
			path:     "statement.ofx",
			header:   "OFXHEADER:100\nDATA:OFXSGML\n",
			expected: true,
		},
		{
			name:     "qfx with xml header",
			path:     "statement.qfx",
			header:   "<?xml version=\"1.0\"?><?OFX OFXHEADER=\"200\"?>\n",
			expected: true,
		},
		{
			name:     "wrong extension",
			path:     "statement.xlsx",
			header:   "OFXHEADER:100\n",
			expected: false,
		},
		{
			name:     "ofx extension without markers",
			path:     "statement.ofx",
			header:   "this is not ofx content",
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewParser().CanParse(tt.path, []byte(tt.header))
			if got != tt.expected {
				t.Errorf("CanParse() = %v, want %v", got, tt.expected)
			}
		})
	}
}
