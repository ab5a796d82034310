package parsers

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"reconciliation-dashboard/internal/models"
	"reconciliation-dashboard/pkg/errors"
)

func newTestParser(t *testing.T) *Parser {
	t.Helper()
	p, err := NewParser(nil)
	if err != nil {
		t.Fatalf("NewParser() error = %v", err)
	}
	return p
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestParserConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		offset  time.Duration
		wantErr bool
	}{
		{"default", 4 * time.Hour, false},
		{"eastern standard", 5 * time.Hour, false},
		{"zero", 0, false},
		{"too large", 15 * time.Hour, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &ParserConfig{CardTimestampOffset: tt.offset}
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseOFX_MinimalBlock(t *testing.T) {
	p := newTestParser(t)
	content := "<OFX>\n<BANKTRANLIST>\n<STMTTRN>\n<TRNTYPE>DEBIT\n<DTPOSTED>20240115\n<TRNAMT>-45.00\n<MEMO>Coffee Shop\n</STMTTRN>\n</BANKTRANLIST>\n</OFX>\n"

	result := p.ParseOFX(content, "statement.ofx")

	if len(result.Transactions) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(result.Transactions))
	}
	tx := result.Transactions[0]
	if !tx.Date.Equal(models.Date(2024, 1, 15)) {
		t.Errorf("expected 2024-01-15, got %s", tx.Date.Format(models.DateLayout))
	}
	if tx.Name != "Coffee Shop" {
		t.Errorf("expected name 'Coffee Shop', got %q", tx.Name)
	}
	if !tx.Value.Equal(dec("45.00")) {
		t.Errorf("expected value 45.00, got %s", tx.Value)
	}
	if tx.Source != "statement.ofx" {
		t.Errorf("expected source to be the file name, got %q", tx.Source)
	}
}

func TestParseOFX_NamePreference(t *testing.T) {
	p := newTestParser(t)
	content := strings.Join([]string{
		"<STMTTRN><DTPOSTED>20240101<TRNAMT>10.00<NAME>ACME CORP<MEMO>invoice 12</STMTTRN>",
		"<STMTTRN><DTPOSTED>20240102<TRNAMT>11.00<NAME>   <MEMO>Fallback memo</STMTTRN>",
		"<STMTTRN><DTPOSTED>20240103<TRNAMT>12.00</STMTTRN>",
	}, "\r\n")

	result := p.ParseOFX(content, "x.ofx")

	want := []string{"ACME CORP", "Fallback memo", "Transaction"}
	if len(result.Transactions) != len(want) {
		t.Fatalf("expected %d transactions, got %d", len(want), len(result.Transactions))
	}
	for i, name := range want {
		if result.Transactions[i].Name != name {
			t.Errorf("transaction %d: expected name %q, got %q", i, name, result.Transactions[i].Name)
		}
	}
}

func TestParseOFX_SkipsIncompleteBlocks(t *testing.T) {
	p := newTestParser(t)
	content := "<STMTTRN><TRNAMT>5.00<NAME>no date</STMTTRN>" +
		"<STMTTRN><DTPOSTED>20240101<NAME>no amount</STMTTRN>" +
		"<STMTTRN><DTPOSTED>20240230<TRNAMT>5.00</STMTTRN>" +
		"<STMTTRN><DTPOSTED>20240101<TRNAMT>-<NAME>dash</STMTTRN>" +
		"<STMTTRN><DTPOSTED>20240101120000[-5:EST]<TRNAMT>7.5<NAME>ok</STMTTRN>"

	result := p.ParseOFX(content, "x.ofx")

	if len(result.Transactions) != 1 || result.Transactions[0].Name != "ok" {
		t.Fatalf("expected only the complete block, got %+v", result.Transactions)
	}
	counts := result.SkipCounts()
	if counts[ReasonMissingDate] != 1 || counts[ReasonMissingValue] != 1 ||
		counts[ReasonInvalidDate] != 1 || counts[ReasonInvalidValue] != 1 {
		t.Errorf("unexpected skip counts %v", counts)
	}
	if result.Rows[4].Line != 5 || !result.Rows[4].Kept {
		t.Errorf("expected block 5 to be kept, got %+v", result.Rows[4])
	}
}

func TestParseOFX_GarbageYieldsEmpty(t *testing.T) {
	p := newTestParser(t)
	result := p.ParseOFX("this is not ofx at all", "x.ofx")
	if len(result.Transactions) != 0 || len(result.Rows) != 0 {
		t.Errorf("expected empty result, got %+v", result)
	}
}

func TestParseCSV_BankPositional(t *testing.T) {
	p := newTestParser(t)
	content := strings.Join([]string{
		`01/15/24,"500.00","","ZELLE FROM JOHN SMITH ON 01/15 REF # ABC"`,
		`01/16/24,"-4363.67","","GUSTO NET PAY"`,
		`01/17/24,"25.00","",""`,
		`01/18/24,"12.00"`,
		`01/19/24,"0.00","","ZERO"`,
		`13/45/24,"1.00","","BAD DATE"`,
		`01/20/24,"abc","","BAD VALUE"`,
		`01/21/24,"9.99","","ZELLE TO LANDLORD"`,
	}, "\n")

	result, err := p.ParseCSV(content, "wf.csv", models.UploadTypeBank)
	if err != nil {
		t.Fatalf("ParseCSV() error = %v", err)
	}
	if result.Layout != LayoutBankPositional.String() {
		t.Errorf("expected bank layout, got %s", result.Layout)
	}
	if len(result.Transactions) != 4 {
		t.Fatalf("expected 4 transactions, got %d: %+v", len(result.Transactions), result.Transactions)
	}

	zelle := result.Transactions[0]
	if zelle.Depositor != "JOHN SMITH" {
		t.Errorf("expected depositor JOHN SMITH, got %q", zelle.Depositor)
	}
	if zelle.PaymentMethod != models.PaymentMethodZelle {
		t.Errorf("expected Zelle payment method, got %q", zelle.PaymentMethod)
	}
	if !zelle.Date.Equal(models.Date(2024, 1, 15)) {
		t.Errorf("expected 2024-01-15, got %s", zelle.Date)
	}

	payroll := result.Transactions[1]
	if !payroll.Value.Equal(dec("4363.67")) {
		t.Errorf("expected sign stripped value, got %s", payroll.Value)
	}
	if payroll.PaymentMethod != "" || payroll.Depositor != "" {
		t.Errorf("non-zelle row should carry no method or depositor: %+v", payroll)
	}

	if result.Transactions[2].Name != "Bank Transaction" {
		t.Errorf("expected default name, got %q", result.Transactions[2].Name)
	}

	outgoing := result.Transactions[3]
	if outgoing.PaymentMethod != models.PaymentMethodZelle || outgoing.Depositor != "" {
		t.Errorf("ZELLE TO should set method but no depositor: %+v", outgoing)
	}

	counts := result.SkipCounts()
	if counts[ReasonTooFewColumns] != 1 || counts[ReasonZeroValue] != 1 ||
		counts[ReasonInvalidDate] != 1 || counts[ReasonInvalidValue] != 1 {
		t.Errorf("unexpected skip counts %v", counts)
	}
	if result.Rows[3].Line != 4 {
		t.Errorf("expected skipped short row on line 4, got %d", result.Rows[3].Line)
	}
}

func TestParseCSV_BankIgnoresHeaderLikeFirstLine(t *testing.T) {
	p := newTestParser(t)
	content := "Date,Amount,x,Description\n01/15/24,10.00,,COFFEE\n"

	result, err := p.ParseCSV(content, "wf.csv", models.UploadTypeBank)
	if err != nil {
		t.Fatalf("ParseCSV() error = %v", err)
	}
	if len(result.Transactions) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(result.Transactions))
	}
	if result.Rows[0].Reason != ReasonInvalidDate {
		t.Errorf("header line should be treated as a data row and skipped, got %+v", result.Rows[0])
	}
}

func TestParseCSV_ProcessorHeader(t *testing.T) {
	p := newTestParser(t)
	content := strings.Join([]string{
		`id,Created date (UTC),Amount,Captured,Description`,
		`ch_1,2025-10-15 02:30:00,"1,200.00",true,Order 55`,
		`ch_2,2025-10-15 11:48:36,$50.00,false,Voided`,
		`ch_3,2025-10-16 04:00:00,0,true,`,
		`ch_4,,10.00,true,`,
		`ch_5,2025-10-16 03:59:59,-75.50,TRUE,`,
	}, "\r\n")

	result, err := p.ParseCSV(content, "stripe.csv", models.UploadTypeStripe)
	if err != nil {
		t.Fatalf("ParseCSV() error = %v", err)
	}
	if result.Layout != LayoutProcessorHeader.String() {
		t.Errorf("expected header layout, got %s", result.Layout)
	}
	if len(result.Transactions) != 2 {
		t.Fatalf("expected 2 transactions, got %d: %+v", len(result.Transactions), result.Rows)
	}

	first := result.Transactions[0]
	if !first.Date.Equal(models.Date(2025, 10, 14)) {
		t.Errorf("02:30 UTC should shift to the previous day, got %s", first.Date.Format(models.DateLayout))
	}
	if !first.Value.Equal(dec("1200")) {
		t.Errorf("expected 1200.00, got %s", first.Value)
	}
	if first.Name != "Credit Card Payment" || first.PaymentMethod != models.PaymentMethodCreditCard {
		t.Errorf("card rows ignore descriptions: %+v", first)
	}

	second := result.Transactions[1]
	if !second.Date.Equal(models.Date(2025, 10, 15)) {
		t.Errorf("expected 2025-10-15, got %s", second.Date.Format(models.DateLayout))
	}
	if !second.Value.Equal(dec("75.50")) {
		t.Errorf("expected 75.50, got %s", second.Value)
	}

	counts := result.SkipCounts()
	if counts[ReasonNotCaptured] != 1 || counts[ReasonZeroValue] != 1 || counts[ReasonMissingDate] != 1 {
		t.Errorf("unexpected skip counts %v", counts)
	}
}

func TestParseCSV_ConfigurableCardOffset(t *testing.T) {
	p, err := NewParser(&ParserConfig{CardTimestampOffset: 5 * time.Hour})
	if err != nil {
		t.Fatalf("NewParser() error = %v", err)
	}
	content := "Created date (UTC),Amount\n2025-01-10 04:30:00,20.00\n"

	result, err := p.ParseCSV(content, "stripe.csv", models.UploadTypeStripe)
	if err != nil {
		t.Fatalf("ParseCSV() error = %v", err)
	}
	if got := result.Transactions[0].Date; !got.Equal(models.Date(2025, 1, 9)) {
		t.Errorf("with a 5h offset 04:30 UTC is the previous day, got %s", got.Format(models.DateLayout))
	}
}

func TestParseCSV_ProcessorAliasesAndDateForms(t *testing.T) {
	p := newTestParser(t)
	content := strings.Join([]string{
		`DATA,VALOR,Name`,
		`2024/03/05,10.00,a`,
		`03/06/2024,11.00,b`,
		`03/07/24,12.00,c`,
		`20240308,13.00,d`,
		`2024-03-09,14.00,e`,
	}, "\n")

	result, err := p.ParseCSV(content, "export.csv", models.UploadTypeStripe)
	if err != nil {
		t.Fatalf("ParseCSV() error = %v", err)
	}

	want := []time.Time{
		models.Date(2024, 3, 5),
		models.Date(2024, 3, 6),
		models.Date(2024, 3, 7),
		models.Date(2024, 3, 8),
		// dashed dates on card exports are UTC timestamps
		models.Date(2024, 3, 8),
	}
	if len(result.Transactions) != len(want) {
		t.Fatalf("expected %d transactions, got %d", len(want), len(result.Transactions))
	}
	for i, d := range want {
		if !result.Transactions[i].Date.Equal(d) {
			t.Errorf("row %d: expected %s, got %s", i, d.Format(models.DateLayout),
				result.Transactions[i].Date.Format(models.DateLayout))
		}
	}
}

func TestDetectHeader(t *testing.T) {
	tests := []struct {
		line       string
		uploadType models.UploadType
		want       bool
	}{
		{"Date,Amount,Description", models.UploadTypeStripe, true},
		{"id,created,captured", models.UploadTypeStripe, true},
		{"01/15/24,500.00,,ZELLE", models.UploadTypeStripe, false},
		{"Date,Amount,Description", models.UploadTypeBank, false},
	}
	for _, tt := range tests {
		if got := DetectHeader(tt.line, tt.uploadType); got != tt.want {
			t.Errorf("DetectHeader(%q, %s) = %v, want %v", tt.line, tt.uploadType, got, tt.want)
		}
	}
}

func TestZelleSender(t *testing.T) {
	tests := []struct {
		description string
		want        string
	}{
		{"Zelle from Maria Silva on 10/09 ref 123", "Maria Silva"},
		{"Zelle payment from John Smith 555-1234", "John Smith"},
		{"ZELLE FROM ANA (MOM)", "ANA"},
		{"Zelle transfer", ""},
	}
	for _, tt := range tests {
		if got := zelleSender(tt.description); got != tt.want {
			t.Errorf("zelleSender(%q) = %q, want %q", tt.description, got, tt.want)
		}
	}
}

func TestParseCSV_ProcessorPositionalZelle(t *testing.T) {
	p := newTestParser(t)
	content := `10/09/25,"300.00","","Zelle from Maria Silva on 10/09 ref 123"`

	result, err := p.ParseCSV(content, "noheader.csv", models.UploadTypeStripe)
	if err != nil {
		t.Fatalf("ParseCSV() error = %v", err)
	}
	if result.Layout != LayoutProcessorPositional.String() {
		t.Errorf("expected positional layout, got %s", result.Layout)
	}
	if len(result.Transactions) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(result.Transactions))
	}
	tx := result.Transactions[0]
	if tx.Name != "Maria Silva" || tx.Depositor != "Maria Silva" || tx.PaymentMethod != models.PaymentMethodZelle {
		t.Errorf("unexpected zelle extraction: %+v", tx)
	}
}

func TestParseCSV_BareQuotesInDescription(t *testing.T) {
	p := newTestParser(t)
	content := strings.Join([]string{
		`01/15/24,-5.00,,ACME "BIG" STORE`,
		`01/16/24,"20.00","","ZELLE FROM ANA LIMA ON 01/16 REF # X"`,
	}, "\n")

	result, err := p.ParseCSV(content, "l.csv", models.UploadTypeBank)
	if err != nil {
		t.Fatalf("ParseCSV() error = %v", err)
	}
	if len(result.Transactions) != 2 {
		t.Fatalf("expected 2 transactions, got %d: %+v", len(result.Transactions), result.Transactions)
	}
	if result.Transactions[0].Name != `ACME "BIG" STORE` {
		t.Errorf("expected quotes kept in description, got %q", result.Transactions[0].Name)
	}
	if !result.Transactions[0].Value.Equal(dec("5.00")) {
		t.Errorf("expected 5.00, got %s", result.Transactions[0].Value)
	}
	if result.Transactions[1].Depositor != "ANA LIMA" {
		t.Errorf("expected following row parsed, got %+v", result.Transactions[1])
	}
}

func TestParseFile_Dispatch(t *testing.T) {
	p := newTestParser(t)

	ofx, err := p.ParseFile(File{
		Content:      []byte("<STMTTRN><DTPOSTED>20240115<TRNAMT>-45.00<MEMO>Coffee Shop</STMTTRN>"),
		OriginalName: "STATEMENT.OFX",
	}, models.UploadTypeBank)
	if err != nil || ofx.Format != "ofx" || len(ofx.Transactions) != 1 {
		t.Errorf("expected OFX dispatch, got %+v, %v", ofx, err)
	}

	csv, err := p.ParseFile(File{
		Content:      []byte("01/15/24,10.00,,COFFEE"),
		OriginalName: "Bank.CSV",
	}, models.UploadTypeBank)
	if err != nil || csv.Format != "csv" || len(csv.Transactions) != 1 {
		t.Errorf("expected CSV dispatch, got %+v, %v", csv, err)
	}

	_, err = p.ParseFile(File{Content: []byte("x"), OriginalName: "statement.pdf"}, models.UploadTypeBank)
	if err == nil {
		t.Fatal("expected unsupported format error")
	}
	re, ok := errors.AsReconcilerError(err)
	if !ok || re.Code != errors.CodeUnsupportedFormat {
		t.Errorf("expected unsupported format code, got %v", err)
	}
	if !strings.Contains(err.Error(), "unsupported file format") {
		t.Errorf("unexpected message %q", err.Error())
	}
}
