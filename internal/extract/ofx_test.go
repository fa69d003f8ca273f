package extract

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/Veraticus/receipt-review/internal/batch"
	"github.com/Veraticus/receipt-review/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const statementOFX = `OFXHEADER:100
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
<DTSERVER>20240315120000[0:GMT]
<LANGUAGE>ENG
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
<CURDEF>USD
<BANKACCTFROM>
<BANKID>123456789
<ACCTID>1234567890
<ACCTTYPE>CHECKING
</BANKACCTFROM>
<BANKTRANLIST>
<DTSTART>20240101120000[0:GMT]
<DTEND>20240131120000[0:GMT]
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20240115120000[0:GMT]
<TRNAMT>-25.50
<FITID>2024011501
<NAME>POS PURCHASE STARBUCKS 1234
</STMTTRN>
<STMTTRN>
<TRNTYPE>CREDIT
<DTPOSTED>20240116120000[0:GMT]
<TRNAMT>1500.00
<FITID>2024011601
<NAME>PAYROLL DEPOSIT
</STMTTRN>
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20240120120000[0:GMT]
<TRNAMT>-125.00
<FITID>2024012001
<NAME>PURCHASE
<MEMO>Whole Foods Market
</STMTTRN>
</BANKTRANLIST>
<LEDGERBAL>
<BALAMT>1000.00
<DTASOF>20240131120000[0:GMT]
</LEDGERBAL>
</STMTRS>
</STMTTRNRS>
</BANKMSGSRSV1>
</OFX>`

func TestOFXParser_Parse(t *testing.T) {
	parser := NewOFXParser()

	results, err := parser.Parse(context.Background(), strings.NewReader(statementOFX))
	require.NoError(t, err)
	require.Len(t, results, 2)

	first := results[0]
	assert.Equal(t, "ofx-2024011501", first.ID)
	assert.Equal(t, 0, first.Index)
	assert.True(t, first.Success)
	require.NotNil(t, first.Receipt)
	assert.Equal(t, "STARBUCKS 1234", first.Receipt.Merchant)
	assert.InDelta(t, 25.50, first.Receipt.Total, 0.001)
	assert.True(t, time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC).Equal(first.Receipt.Date))

	second := results[1]
	assert.Equal(t, 1, second.Index)
	assert.Equal(t, "Whole Foods Market", second.Receipt.Merchant)
	assert.InDelta(t, 125.0, second.Receipt.Total, 0.001)
}

func TestOFXParser_StatementLinesNeedReview(t *testing.T) {
	results, err := NewOFXParser().Parse(context.Background(), strings.NewReader(statementOFX))
	require.NoError(t, err)

	for _, r := range results {
		c := batch.Classify(r)
		assert.Equal(t, model.StatusReview, c.Status, r.ID)
		assert.InDelta(t, 0.75, c.Confidence, 1e-9)
	}
}

func TestOFXParser_Invalid(t *testing.T) {
	for _, data := range []string{"", "not valid OFX"} {
		_, err := NewOFXParser().Parse(context.Background(), strings.NewReader(data))
		assert.Error(t, err)
	}
}

func TestMerchantName(t *testing.T) {
	assert.True(t, isGenericDescription("purchase"))
	assert.False(t, isGenericDescription("Target"))
}
