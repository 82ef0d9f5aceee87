package services

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/expense-tracker/apiserver/types"
	"github.com/shopspring/decimal"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// csvColumns maps normalized header names to expense fields.
var csvColumns = map[string]string{
	"amount":        "amount",
	"date":          "date",
	"category":      "category",
	"paymentmethod": "paymentMethod",
	"description":   "description",
}

// readExpenseCSV turns an uploaded CSV file into expense inputs, one per data
// row. Headers are matched case-insensitively and unknown columns are ignored.
// Cells that cannot be converted are recorded in verr against their row number
// (1 is the first data row) and the row is returned as nil.
func readExpenseCSV(data []byte, verr *types.ValidationError) ([]*types.ExpenseInput, error) {
	reader := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, utf8BOM)))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	fields := make([]string, len(header))
	for i, name := range header {
		fields[i] = csvColumns[normalizeHeader(name)]
	}

	var rows []*types.ExpenseInput
	for row := 1; ; row++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row %d: %w", row, err)
		}
		if blankRecord(record) {
			row--
			continue
		}

		in, problems := expenseInputFromRecord(fields, record)
		for _, msg := range problems {
			verr.Add(rowField(row), fmt.Sprintf("Row %d: %s", row, msg))
		}
		if len(problems) > 0 {
			rows = append(rows, nil)
			continue
		}
		rows = append(rows, in)
	}
	return rows, nil
}

func expenseInputFromRecord(fields, record []string) (*types.ExpenseInput, []string) {
	in := &types.ExpenseInput{}
	var problems []string

	for i, value := range record {
		if i >= len(fields) {
			break
		}
		value = strings.TrimSpace(value)
		switch fields[i] {
		case "amount":
			if value == "" {
				continue
			}
			amount, err := decimal.NewFromString(value)
			if err != nil {
				problems = append(problems, "Amount must be a number")
				continue
			}
			in.Amount = &amount
		case "date":
			if value == "" {
				continue
			}
			date, err := types.ParseDate(value)
			if err != nil {
				problems = append(problems, "Date must be YYYY-MM-DD or RFC 3339")
				continue
			}
			in.Date = &date
		case "category":
			in.Category = &value
		case "paymentMethod":
			in.PaymentMethod = &value
		case "description":
			in.Description = &value
		}
	}
	return in, problems
}

func normalizeHeader(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.NewReplacer("_", "", " ", "", "-", "").Replace(name)
}

func blankRecord(record []string) bool {
	for _, value := range record {
		if strings.TrimSpace(value) != "" {
			return false
		}
	}
	return true
}

func rowField(row int) string {
	return fmt.Sprintf("row %d", row)
}
