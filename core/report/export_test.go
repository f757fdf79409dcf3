package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/soko/core/analytics"
)

func TestFormatCurrency(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0", "$0.00"},
		{"5", "$5.00"},
		{"999.999", "$1,000.00"},
		{"1234.56", "$1,234.56"},
		{"1234567.891", "$1,234,567.89"},
		{"-1234.56", "-$1,234.56"},
		{"-0.001", "$0.00"},
		{"100000", "$100,000.00"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatCurrency(decimal.RequireFromString(tt.in)))
		})
	}
}

func TestFormatPercentAndCount(t *testing.T) {
	assert.Equal(t, "12.3%", FormatPercent(12.34))
	assert.Equal(t, "0.0%", FormatPercent(0))
	assert.Equal(t, "100.0%", FormatPercent(100))
	assert.Equal(t, "66.7%", FormatPercent(66.67))

	assert.Equal(t, "0", FormatCount(0))
	assert.Equal(t, "999", FormatCount(999))
	assert.Equal(t, "1,234", FormatCount(1234))
	assert.Equal(t, "1,234,567", FormatCount(1234567))
	assert.Equal(t, "-1,000", FormatCount(-1000))

	assert.Equal(t, "2024-03-05", FormatDate(time.Date(2024, time.March, 5, 23, 0, 0, 0, time.UTC)))
}

func Test_titleKey(t *testing.T) {
	assert.Equal(t, "Total Sales", titleKey("total_sales"))
	assert.Equal(t, "Win Rate", titleKey("win_rate"))
	assert.Equal(t, "Users", titleKey("users"))
}

func readCSV(t *testing.T, b []byte) [][]string {
	r := csv.NewReader(bytes.NewReader(b))
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	require.NoError(t, err)
	return records
}

func salesReport() analytics.SalesReport {
	return analytics.SalesReport{
		Summary: analytics.SalesSummary{
			TotalSales:      1234,
			TotalAmount:     decimal.RequireFromString("1234567.5"),
			WonSales:        3,
			WonAmount:       decimal.RequireFromString("99.99"),
			LostSales:       1,
			WinRate:         12.34,
			AverageDealSize: decimal.RequireFromString("1000.4"),
		},
		SalesOverTime: []analytics.PeriodStat{
			{Period: "2024-01-01", Count: 2, TotalAmount: decimal.RequireFromString("10"), AvgAmount: decimal.RequireFromString("5")},
			{Period: "2024-02-01", Count: 1, TotalAmount: decimal.RequireFromString("2500"), AvgAmount: decimal.RequireFromString("2500")},
		},
		SalesByStatus: []analytics.StatusAmount{
			{Status: "WON", Count: 3, TotalAmount: decimal.RequireFromString("99.99")},
		},
		SalesByPriority: []analytics.PriorityAmount{},
		TopPerformers: []analytics.Performer{
			{UserID: "u1", Name: "Ada Lovelace", Username: "ada", TotalSales: 2, TotalAmount: decimal.RequireFromString("1500"), WonSales: 1},
		},
	}
}

func TestExportCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, ExportCSV(&buf, salesReport()))

	want := [][]string{
		{"REPORT SUMMARY"},
		{"Total Sales", "1,234"},
		{"Total Amount", "$1,234,567.50"},
		{"Won Sales", "3"},
		{"Won Amount", "$99.99"},
		{"Lost Sales", "1"},
		{"Win Rate", "12.3%"},
		{"Average Deal Size", "$1,000.40"},
		{"SALES OVER TIME"},
		{"Period", "Count", "Total Amount", "Average Amount"},
		{"2024-01-01", "2", "$10.00", "$5.00"},
		{"2024-02-01", "1", "$2,500.00", "$2,500.00"},
		{"SALES BY STATUS"},
		{"Status", "Count", "Total Amount"},
		{"WON", "3", "$99.99"},
		{"TOP PERFORMERS"},
		{"Name", "Username", "Total Sales", "Total Amount", "Won Sales", "Lost Sales"},
		{"Ada Lovelace", "ada", "2", "$1,500.00", "1", "0"},
	}
	// csv.Reader skips the blank separator rows
	assert.Equal(t, want, readCSV(t, buf.Bytes()))
	assert.Equal(t, 4, bytes.Count(buf.Bytes(), []byte("\n\n")), "one blank row after each section")
}

func TestExportCSV_storedJSON(t *testing.T) {
	data, err := json.Marshal(salesReport())
	require.NoError(t, err)

	var typed, stored bytes.Buffer
	require.NoError(t, ExportCSV(&typed, salesReport()))
	require.NoError(t, ExportCSV(&stored, json.RawMessage(data)))
	assert.Equal(t, typed.String(), stored.String())

	var generic map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &generic))
	var fromMap bytes.Buffer
	require.NoError(t, ExportCSV(&fromMap, generic))
	assert.Contains(t, fromMap.String(), "SALES OVER TIME")
}

func TestExportCSV_sectionRows(t *testing.T) {
	users := make([]analytics.UserActivity, 25)
	for i := range users {
		users[i] = analytics.UserActivity{UserID: "u", Name: "user", CompletionRate: 50}
	}
	tasks := analytics.TaskReport{
		TasksByStatus:      []analytics.StatusCount{{Status: "P", Count: 1}, {Status: "C", Count: 2}},
		TasksByPriority:    []analytics.PriorityCount{{Priority: "H", Count: 3}},
		CompletionOverTime: []analytics.PeriodCount{},
		UserPerformance:    []analytics.UserTaskStat{{Name: "a", CompletionRate: 33.33}},
	}

	tests := []struct {
		name       string
		data       interface{}
		wantLabels map[string]int // label -> data rows
	}{
		{
			name:       "user activity",
			data:       analytics.UserActivityReport{Users: users},
			wantLabels: map[string]int{"REPORT SUMMARY": 4, "USER ACTIVITY": 25},
		},
		{
			name:       "tasks",
			data:       tasks,
			wantLabels: map[string]int{"REPORT SUMMARY": 6, "TASKS BY STATUS": 2, "TASKS BY PRIORITY": 1, "USER PERFORMANCE": 1},
		},
		{
			name:       "conversion",
			data:       analytics.ConversionReport{},
			wantLabels: map[string]int{"SALES CONVERSION": 5, "CUSTOMER CONVERSION": 3},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, ExportCSV(&buf, tt.data))

			got := make(map[string]int)
			var current string
			for _, rec := range readCSV(t, buf.Bytes()) {
				if len(rec) == 1 {
					current = rec[0]
					got[current] = 0
					continue
				}
				got[current]++
			}
			for label, rows := range tt.wantLabels {
				header := 0
				if label != "REPORT SUMMARY" && label != "SALES CONVERSION" && label != "CUSTOMER CONVERSION" {
					header = 1
				}
				assert.Equal(t, rows+header, got[label], label)
			}
			assert.Len(t, got, len(tt.wantLabels))
		})
	}
}

func TestExportCSV_invalid(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, ExportCSV(&buf, []int{1, 2}))
	assert.Error(t, ExportCSV(&buf, json.RawMessage(`{"summary": [1]}`)))
	assert.NoError(t, ExportCSV(&buf, map[string]interface{}{}))
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "report_20240305_090705.csv", Filename(time.Date(2024, time.March, 5, 9, 7, 5, 0, time.UTC)))
}
