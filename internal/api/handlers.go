package api

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"reconciliation-dashboard/internal/models"
	"reconciliation-dashboard/internal/parsers"
	"reconciliation-dashboard/internal/reconciler"
	"reconciliation-dashboard/internal/store"
	"reconciliation-dashboard/pkg/errors"
)

// ManualReconcileRequest pairs two transactions chosen by the user
type ManualReconcileRequest struct {
	TransactionID string `json:"transactionId"`
	MatchID       string `json:"matchId"`
}

// SheetImportRequest selects the spreadsheet to import; empty uses the
// configured one
type SheetImportRequest struct {
	SheetID string `json:"sheetId"`
}

// UploadResponse is returned by the upload route
type UploadResponse struct {
	Message      string                   `json:"message"`
	Count        int                      `json:"count"`
	Duplicates   int                      `json:"duplicates"`
	Transactions []models.Transaction     `json:"transactions"`
	Files        []reconciler.FileSummary `json:"files"`
	Errors       []string                 `json:"errors,omitempty"`
}

func (s *Server) listTransactions(c *gin.Context) {
	txs, err := s.store.List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	if raw := c.Query("status"); raw != "" {
		status := models.Status(raw)
		if !status.IsValid() {
			writeError(c, errors.ValidationError(errors.CodeInvalidValue, fmt.Sprintf("invalid status %q", raw), nil))
			return
		}
		txs = models.WithStatus(txs, status)
	}

	c.JSON(http.StatusOK, txs)
}

func (s *Server) getTransaction(c *gin.Context) {
	tx, err := s.store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, tx)
}

func (s *Server) createTransaction(c *gin.Context) {
	var tx models.Transaction
	if err := c.ShouldBindJSON(&tx); err != nil {
		writeError(c, errors.ValidationError(errors.CodeInvalidValue, "Validation error", err))
		return
	}
	if strings.TrimSpace(tx.Source) == "" {
		writeError(c, errors.ValidationError(errors.CodeMissingField, "source is required", nil))
		return
	}

	// identity and lifecycle timestamps belong to the store
	tx.ID = ""
	tx.CreatedAt = time.Time{}
	tx.DeletedAt = nil

	created, err := s.store.Create(c.Request.Context(), tx)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (s *Server) updateTransaction(c *gin.Context) {
	var patch store.Patch
	if err := c.ShouldBindJSON(&patch); err != nil {
		writeError(c, errors.ValidationError(errors.CodeInvalidValue, "Validation error", err))
		return
	}

	tx, err := s.store.Update(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, tx)
}

func (s *Server) deleteTransaction(c *gin.Context) {
	if err := s.store.Delete(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) listTrash(c *gin.Context) {
	txs, err := s.store.ListTrash(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, txs)
}

func (s *Server) restoreTransaction(c *gin.Context) {
	tx, err := s.store.Restore(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, tx)
}

func (s *Server) upload(c *gin.Context) {
	rawType := c.Query("type")
	if rawType == "" {
		rawType = c.PostForm("type")
	}
	uploadType, err := models.ParseUploadType(rawType)
	if err != nil {
		writeError(c, errors.ValidationError(errors.CodeInvalidUploadType, err.Error(), nil))
		return
	}

	form, err := c.MultipartForm()
	if err != nil || len(form.File["files"]) == 0 {
		writeError(c, errors.ValidationError(errors.CodeMissingField, "No files uploaded", nil))
		return
	}
	headers := form.File["files"]
	if len(headers) > reconciler.MaxUploadFiles {
		writeError(c, errors.ValidationError(errors.CodeInvalidValue,
			fmt.Sprintf("at most %d files per upload", reconciler.MaxUploadFiles), nil))
		return
	}

	files := make([]parsers.File, 0, len(headers))
	for _, fh := range headers {
		content, err := readUpload(fh)
		if err != nil {
			writeError(c, errors.FileError(errors.CodeFileUnreadable, fh.Filename, err))
			return
		}
		files = append(files, parsers.File{Content: content, OriginalName: fh.Filename})
	}

	summary, err := s.service.ImportUpload(c.Request.Context(), files, uploadType)
	if summary == nil || (err != nil && !errors.HasCategory(err, errors.CategoryParse)) {
		writeError(c, err)
		return
	}
	if err != nil && summary.Failed == len(files) {
		writeError(c, err)
		return
	}

	resp := UploadResponse{
		Message: fmt.Sprintf("Successfully imported %d transactions from %d file(s)",
			summary.Imported, len(files)-summary.Failed),
		Count:        summary.Imported,
		Duplicates:   summary.Duplicates,
		Transactions: summary.Transactions,
		Files:        summary.Files,
	}
	for _, fs := range summary.Files {
		if fs.Error != "" {
			resp.Errors = append(resp.Errors, fs.FileName+": "+fs.Error)
		}
	}

	c.JSON(http.StatusCreated, resp)
}

func (s *Server) importSheet(c *gin.Context) {
	if s.sheets == nil {
		writeError(c, errors.NetworkError(errors.CodeUnauthorized, "google sheet not connected", nil))
		return
	}

	var req SheetImportRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			writeError(c, errors.ValidationError(errors.CodeInvalidValue, "Validation error", err))
			return
		}
	}

	mapped, err := s.sheets.Import(c.Request.Context(), req.SheetID)
	if err != nil {
		writeError(c, err)
		return
	}

	summary, err := s.service.ImportLedger(c.Request.Context(), mapped.Transactions)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":      fmt.Sprintf("Imported %d ledger rows", summary.Imported),
		"count":        summary.Imported,
		"duplicates":   summary.Duplicates,
		"skipped":      mapped.Skipped,
		"transactions": summary.Transactions,
	})
}

func (s *Server) reconcile(c *gin.Context) {
	run, err := s.service.RunReconciliation(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, run)
}

func (s *Server) candidates(c *gin.Context) {
	txs, err := s.service.ManualCandidates(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, txs)
}

func (s *Server) manualReconcile(c *gin.Context) {
	var req ManualReconcileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errors.ValidationError(errors.CodeInvalidValue, "Validation error", err))
		return
	}

	match, err := s.service.ManualReconcile(c.Request.Context(), req.TransactionID, req.MatchID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, match)
}

func (s *Server) reviewQueue(c *gin.Context) {
	start, err := queryDate(c, "start")
	if err != nil {
		writeError(c, err)
		return
	}
	end, err := queryDate(c, "end")
	if err != nil {
		writeError(c, err)
		return
	}

	txs, err := s.service.ReviewQueue(c.Request.Context(), start, end)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, txs)
}

func queryDate(c *gin.Context, key string) (*time.Time, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	d, err := models.ParseDate(raw)
	if err != nil {
		return nil, errors.ValidationError(errors.CodeInvalidValue, fmt.Sprintf("invalid %s date %q", key, raw), err)
	}
	return &d, nil
}

func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
