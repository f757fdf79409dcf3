package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"io"
	"time"

	"github.com/pkg/errors"
)

// CSVContentType is the media type of exported reports.
const CSVContentType = "text/csv"

type (
	column struct {
		header string
		key    string
		format formatter
	}

	// section is a labelled block of the CSV export. Sections without columns are key/value lists.
	section struct {
		key     string
		label   string
		columns []column
	}
)

func col(header, key string, format formatter) column {
	return column{header: header, key: key, format: format}
}

var sections = []section{
	{key: "summary", label: "REPORT SUMMARY"},
	{key: "personal_performance", label: "PERSONAL PERFORMANCE"},
	{key: "sales_over_time", label: "SALES OVER TIME", columns: []column{
		col("Period", "period", dateCell),
		col("Count", "count", countCell),
		col("Total Amount", "total_amount", currencyCell),
		col("Average Amount", "avg_amount", currencyCell),
	}},
	{key: "sales_by_status", label: "SALES BY STATUS", columns: []column{
		col("Status", "status", plainCell),
		col("Count", "count", countCell),
		col("Total Amount", "total_amount", currencyCell),
	}},
	{key: "sales_by_priority", label: "SALES BY PRIORITY", columns: []column{
		col("Priority", "priority", plainCell),
		col("Count", "count", countCell),
		col("Total Amount", "total_amount", currencyCell),
	}},
	{key: "top_performers", label: "TOP PERFORMERS", columns: []column{
		col("Name", "name", plainCell),
		col("Username", "username", plainCell),
		col("Total Sales", "total_sales", countCell),
		col("Total Amount", "total_amount", currencyCell),
		col("Won Sales", "won_sales", countCell),
		col("Lost Sales", "lost_sales", countCell),
	}},
	{key: "customer_status", label: "CUSTOMER STATUS", columns: []column{
		col("Status", "status", plainCell),
		col("Count", "count", countCell),
	}},
	{key: "engagement_levels", label: "ENGAGEMENT LEVELS", columns: []column{
		col("Engagement Level", "engagement_level", plainCell),
		col("Count", "count", countCell),
	}},
	{key: "acquisition_over_time", label: "CUSTOMER ACQUISITION", columns: []column{
		col("Period", "period", dateCell),
		col("Count", "count", countCell),
	}},
	{key: "regional_distribution", label: "REGIONAL DISTRIBUTION", columns: []column{
		col("Region", "region", plainCell),
		col("Count", "count", countCell),
	}},
	{key: "tasks_by_status", label: "TASKS BY STATUS", columns: []column{
		col("Status", "status", plainCell),
		col("Count", "count", countCell),
	}},
	{key: "tasks_by_priority", label: "TASKS BY PRIORITY", columns: []column{
		col("Priority", "priority", plainCell),
		col("Count", "count", countCell),
	}},
	{key: "completion_over_time", label: "TASK COMPLETIONS", columns: []column{
		col("Period", "period", dateCell),
		col("Count", "count", countCell),
	}},
	{key: "user_performance", label: "USER PERFORMANCE", columns: []column{
		col("Name", "name", plainCell),
		col("Username", "username", plainCell),
		col("Total Tasks", "total_tasks", countCell),
		col("Completed Tasks", "completed_tasks", countCell),
		col("Completion Rate", "completion_rate", percentCell),
	}},
	{key: "sales_conversion", label: "SALES CONVERSION"},
	{key: "customer_conversion", label: "CUSTOMER CONVERSION"},
	{key: "users", label: "USER ACTIVITY", columns: []column{
		col("Name", "name", plainCell),
		col("Username", "username", plainCell),
		col("Role", "role", plainCell),
		col("Total Sales", "total_sales", countCell),
		col("Won Sales", "won_sales", countCell),
		col("Sales Amount", "sales_amount", currencyCell),
		col("Total Tasks", "total_tasks", countCell),
		col("Completed Tasks", "completed_tasks", countCell),
		col("Completion Rate", "completion_rate", percentCell),
		col("Total Customers", "total_customers", countCell),
		col("Active Customers", "active_customers", countCell),
	}},
}

// object is a decoded JSON object that remembers its key order.
type object struct {
	keys   []string
	values map[string]interface{}
}

func (o *object) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return errors.New("expected a JSON object")
	}
	o.keys = o.keys[:0]
	o.values = make(map[string]interface{})
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key := tok.(string)
		var val interface{}
		if err := dec.Decode(&val); err != nil {
			return err
		}
		if _, dup := o.values[key]; !dup {
			o.keys = append(o.keys, key)
		}
		o.values[key] = val
	}
	_, err = dec.Token() // '}'
	return err
}

func decodeSections(data interface{}) (map[string]json.RawMessage, error) {
	var raw []byte
	switch d := data.(type) {
	case json.RawMessage:
		raw = d
	case []byte:
		raw = d
	default:
		b, err := json.Marshal(data)
		if err != nil {
			return nil, errors.Wrap(err, "encoding report data")
		}
		raw = b
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return nil, errors.Wrap(err, "report data must be a JSON object")
	}
	return top, nil
}

// ExportCSV writes data, an aggregated report or its stored JSON, as labelled CSV sections.
// Each section is its label, a header row for tables, the rows, then a blank row. Absent or empty
// sections are skipped.
func ExportCSV(w io.Writer, data interface{}) error {
	top, err := decodeSections(data)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	for _, sec := range sections {
		raw, ok := top[sec.key]
		if !ok {
			continue
		}
		rows, err := sec.render(raw)
		if err != nil {
			return errors.Wrapf(err, "exporting %s", sec.key)
		}
		if rows == nil {
			continue
		}
		if err := cw.WriteAll(rows); err != nil {
			return errors.Wrap(err, "writing csv")
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "writing csv")
}

// render returns the CSV rows of the section, or nil when it has no data.
func (sec section) render(raw json.RawMessage) ([][]string, error) {
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, nil
	}
	rows := [][]string{{sec.label}}

	if sec.columns == nil {
		var obj object
		if err := json.Unmarshal(raw, &obj); err != nil {
			return nil, err
		}
		if len(obj.keys) == 0 {
			return nil, nil
		}
		for _, k := range obj.keys {
			rows = append(rows, []string{titleKey(k), valueCell(k, obj.values[k])})
		}
		return append(rows, []string{}), nil
	}

	var items []object
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	header := make([]string, len(sec.columns))
	for i, c := range sec.columns {
		header[i] = c.header
	}
	rows = append(rows, header)
	for _, item := range items {
		row := make([]string, len(sec.columns))
		for i, c := range sec.columns {
			row[i] = c.format(item.values[c.key])
		}
		rows = append(rows, row)
	}
	return append(rows, []string{}), nil
}

// Filename is the attachment name of a report exported at now.
func Filename(now time.Time) string {
	return "report_" + now.Format("20060102_150405") + ".csv"
}
