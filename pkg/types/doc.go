// Package types defines the Catalog interface, the FoodItem entity and its
// civil Date, the backend Config, and the standard errors shared by the
// larder catalog and capture core.
//
// Components exchange values from this package only; storage and device
// details stay behind the interfaces.
package types
