package tabulate

import (
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("WriteCSV", func() {
	It("writes the fixed header even for an empty table", func() {
		out, err := WriteCSV(nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(out)).To(Equal("name,quantity,unit_price,total_price\n"))
	})

	It("formats prices with two fixed decimals", func() {
		out, err := WriteCSV([]Item{
			{Name: "Milk", Quantity: 1, UnitPrice: f64(2.5), TotalPrice: 2.5},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(string(out)).To(ContainSubstring("Milk,1,2.50,2.50\n"))
	})

	It("writes an unobserved unit price as an empty field", func() {
		out, err := WriteCSV([]Item{
			{Name: "Eggs", Quantity: 1, TotalPrice: 3},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(string(out)).To(ContainSubstring("Eggs,1,,3.00\n"))
	})

	It("keeps fractional quantities exact", func() {
		out, err := WriteCSV([]Item{
			{Name: "Grapes", Quantity: 0.5, UnitPrice: f64(4.98), TotalPrice: 2.49},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(string(out)).To(ContainSubstring("Grapes,0.5,4.98,2.49\n"))
	})

	It("quotes names containing commas", func() {
		out, err := WriteCSV([]Item{
			{Name: "Peppers, Red", Quantity: 2, UnitPrice: f64(1.25), TotalPrice: 2.50},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(string(out)).To(ContainSubstring(`"Peppers, Red",2,1.25,2.50`))
	})
})

var _ = Describe("ReadCSV", func() {
	It("round-trips the canonical table field for field", func() {
		items := []Item{
			{Name: "Bread", Quantity: 1, UnitPrice: f64(2.00), TotalPrice: 2.00},
			{Name: "Milk", Quantity: 2, UnitPrice: f64(2.50), TotalPrice: 5.00},
			{Name: "Eggs", Quantity: 1, TotalPrice: 3.00},
			{Name: "Grapes, Green", Quantity: 0.5, UnitPrice: f64(4.98), TotalPrice: 2.49},
		}

		out, err := WriteCSV(items)
		Expect(err).NotTo(HaveOccurred())

		back, err := ReadCSV(out)
		Expect(err).NotTo(HaveOccurred())
		Expect(back).To(Equal(items))
	})

	It("rejects input without a header row", func() {
		_, err := ReadCSV([]byte(""))
		Expect(err).To(HaveOccurred())
	})

	It("rejects rows with unparseable numbers", func() {
		csv := strings.Join([]string{
			"name,quantity,unit_price,total_price",
			"Milk,lots,2.50,2.50",
		}, "\n")
		_, err := ReadCSV([]byte(csv))
		Expect(err).To(HaveOccurred())
	})
})
