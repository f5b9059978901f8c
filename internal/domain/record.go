package domain

// ErrorMarker is written in the second column of every failed row.
const ErrorMarker = "Error"

// ResultRecord is one row of a tabular result file.
// Key fills the first declared column. A failed record carries no values.
type ResultRecord struct {
	Key    string
	Failed bool
	Values map[string]string
}

// FailedRecord builds the degenerate record written for any failed job.
func FailedRecord(key string) ResultRecord {
	return ResultRecord{Key: key, Failed: true}
}

// Row renders the record against the declared headers. The row always has
// exactly len(headers) fields; absent values are left blank.
func (r ResultRecord) Row(headers []string) []string {
	row := make([]string, len(headers))
	if len(headers) == 0 {
		return row
	}
	row[0] = r.Key
	if r.Failed {
		if len(headers) > 1 {
			row[1] = ErrorMarker
		}
		return row
	}
	for i := 1; i < len(headers); i++ {
		row[i] = r.Values[headers[i]]
	}
	return row
}
