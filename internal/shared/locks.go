package shared

import "fmt"

// SalesOrderLockKey builds redis keys serializing deliveries per order.
func SalesOrderLockKey(orderID int64) string {
	return fmt.Sprintf("lock:sales_order:%d", orderID)
}

// CustomerLockKey builds redis keys serializing credit ledger writes per client.
func CustomerLockKey(customerID int64) string {
	return fmt.Sprintf("lock:customer:%d", customerID)
}

// DocNumber formats document numbers as PREFIX-YYYYMM-00001.
func DocNumber(prefix string, year int, month int, seq int64) string {
	return fmt.Sprintf("%s-%04d%02d-%05d", prefix, year, month, seq)
}

// SupplierLockKey builds redis keys serializing cash payments made to a supplier.
func SupplierLockKey(supplierID int64) string {
	return fmt.Sprintf("lock:supplier:%d", supplierID)
}
