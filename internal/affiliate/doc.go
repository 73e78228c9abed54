// Package affiliate keeps Tabelog links in the bare form ValueCommerce
// LinkSwitch rewrites at page render time, and records the LinkSwitch
// activation state in a location's affiliate_info column.
package affiliate
