// Package export writes evidence records as JSON or CSV.
//
// JSON output is an array of full records, trace included, and is also the
// archive format used by retention. CSV output flattens each record to one
// row of summary columns plus the rationale lines:
//
//	exporter, err := export.New("csv", false)
//	if err != nil {
//	    return err
//	}
//	err = exporter.Export(ctx, records, os.Stdout)
//
// Both exporters support ExportStream, which consumes the channel returned
// by Storage.QueryStream.
package export
