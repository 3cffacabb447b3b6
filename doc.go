// Package mailmerge merges a Word (.docx) template with the rows of a
// spreadsheet (.xlsx) and optionally renders the result to PDF.
//
// # Quick Start
//
//	svc, err := mailmerge.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer svc.Close()
//
//	_, err = svc.UploadTemplate(ctx, "s1", "letter.docx", templateFile)
//	_, err = svc.UploadData(ctx, "s1", "people.xlsx", dataFile)
//	res, err := svc.Merge(ctx, "s1", mailmerge.MergeRequest{Format: mailmerge.FormatPDF})
//	dl, err := svc.Download("s1", res.Files[0])
//
// # Pipeline
//
//  1. Upload: the file is stored in the session directory and validated
//     (template parsed, spreadsheet previewed).
//  2. Assembly: the template is cloned per record and every {{Header}} token
//     held by a single text run is replaced by the record value. Combined
//     mode joins the records with page breaks; per-record mode writes one
//     document per record.
//  3. Conversion (PDF only): paragraphs are reduced to headings, bold
//     paragraphs, text and page breaks, then rendered by the first renderer
//     of the chain that succeeds (headless Chrome, then pandoc).
//
// # Sessions
//
// Each session owns a private directory. Every file allocated for it is
// tracked and deleted when superseded, cleared or evicted. The store holds
// at most 50 sessions by default; creating one more evicts the oldest.
//
// # Errors
//
// Service methods return errors wrapping one of the sentinels of this
// package. KindOf maps an error to its ErrorKind and Failure builds the
// {success:false, error, kind} result served to clients.
//
// # Browser Requirements
//
// The Chrome renderer needs Chrome/Chromium. go-rod downloads a managed
// Chromium on first run when none is found. In containers and CI, set
// ROD_NO_SANDBOX=1; ROD_BROWSER_BIN selects a custom binary.
package mailmerge
