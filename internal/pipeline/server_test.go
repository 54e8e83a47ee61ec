package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/reeltab/reeltab/internal/scanning"
)

// fixedExtractor returns the same answer for every frame.
type fixedExtractor struct {
	items []scanning.LineItem
	err   error
}

func (f *fixedExtractor) ExtractItems(ctx context.Context, png []byte) ([]scanning.LineItem, error) {
	return f.items, f.err
}

func (f *fixedExtractor) Close() error { return nil }

// uploadBody builds a multipart body holding one small PNG.
func uploadBody(field, filename string, content []byte) (*bytes.Buffer, string) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile(field, filename)
	Expect(err).NotTo(HaveOccurred())
	_, err = part.Write(content)
	Expect(err).NotTo(HaveOccurred())
	Expect(writer.Close()).To(Succeed())
	return body, writer.FormDataContentType()
}

func testPNG() []byte {
	img := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	var buf bytes.Buffer
	Expect(png.Encode(&buf, img)).To(Succeed())
	return buf.Bytes()
}

var _ = Describe("Server", func() {
	var (
		extractor *fixedExtractor
		server    *Server
		rec       *httptest.ResponseRecorder
	)

	BeforeEach(func() {
		extractor = &fixedExtractor{
			items: []scanning.LineItem{item("Bread", 1, 2.00, 2.00), item("Milk", 1, 2.50, 2.50)},
		}
		rec = httptest.NewRecorder()
	})

	JustBeforeEach(func() {
		service := NewService(extractor, GinkgoT().TempDir(), DefaultConfig())
		server = NewServer(service)
	})

	Describe("GET /", func() {
		It("serves the upload page", func() {
			req := httptest.NewRequest("GET", "/", nil)
			server.ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Header().Get("Content-Type")).To(ContainSubstring("text/html"))
			Expect(rec.Body.String()).To(ContainSubstring("reeltab"))
		})
	})

	Describe("POST /api/extract", func() {
		It("returns the extracted table as a CSV attachment", func() {
			body, contentType := uploadBody("file", "receipt.png", testPNG())
			req := httptest.NewRequest("POST", "/api/extract", body)
			req.Header.Set("Content-Type", contentType)
			server.ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Header().Get("Content-Type")).To(ContainSubstring("text/csv"))
			Expect(rec.Header().Get("Content-Disposition")).To(ContainSubstring("receipt_items.csv"))
			Expect(rec.Body.String()).To(HavePrefix("name,quantity,unit_price,total_price\n"))
			Expect(rec.Body.String()).To(ContainSubstring("Bread,1,2.00,2.00"))
			Expect(rec.Body.String()).To(ContainSubstring("Milk,1,2.50,2.50"))
		})

		It("returns JSON when asked", func() {
			body, contentType := uploadBody("file", "receipt.png", testPNG())
			req := httptest.NewRequest("POST", "/api/extract?format=json", body)
			req.Header.Set("Content-Type", contentType)
			server.ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusOK))

			var result Result
			Expect(json.Unmarshal(rec.Body.Bytes(), &result)).To(Succeed())
			Expect(result.Items).To(HaveLen(2))
			Expect(result.Items[0].Name).To(Equal("Bread"))
		})

		It("rejects requests without a file", func() {
			body, contentType := uploadBody("wrong-field", "receipt.png", testPNG())
			req := httptest.NewRequest("POST", "/api/extract", body)
			req.Header.Set("Content-Type", contentType)
			server.ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusBadRequest))
			Expect(rec.Body.String()).To(ContainSubstring("error"))
		})

		It("rejects undecodable uploads before any model call", func() {
			body, contentType := uploadBody("file", "receipt.png", []byte("not an image"))
			req := httptest.NewRequest("POST", "/api/extract", body)
			req.Header.Set("Content-Type", contentType)
			server.ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusBadRequest))
			Expect(rec.Body.String()).To(ContainSubstring("Could not read the uploaded file"))
		})

		When("the model finds no items", func() {
			BeforeEach(func() {
				extractor.items = nil
			})

			It("reports no items detected, not an empty file", func() {
				body, contentType := uploadBody("file", "receipt.png", testPNG())
				req := httptest.NewRequest("POST", "/api/extract", body)
				req.Header.Set("Content-Type", contentType)
				server.ServeHTTP(rec, req)

				Expect(rec.Code).To(Equal(http.StatusUnprocessableEntity))
				Expect(rec.Body.String()).To(ContainSubstring("No line items were detected"))
			})
		})
	})
})
