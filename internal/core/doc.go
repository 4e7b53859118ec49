// Package core provides the business logic for transaction imports.
//
// The package is independent of any transport or database. It can be used
// by the web handlers, the CLI, or tests without modification; persistence is
// reached only through the [Store] interface.
//
// # Pipeline
//
// An import runs in two file-level steps followed by a per-row pipeline:
//
//  1. [Decode] turns the uploaded bytes into a [Table] (CSV or XLSX)
//  2. [CheckHeaders] verifies the mandatory columns exist
//  3. For each row, in file order:
//     validate ([ValidateRow]), resolve account and category, check for a
//     duplicate, and create the transaction
//
// Steps 1 and 2 fail the whole import with a [*DecodeError] or
// [*MissingHeaderError]. Nothing in step 3 does: every row ends as imported,
// failed or duplicate, and the [ImportReport] accounts for all of them.
//
// # Duplicates
//
// Two transactions are the same economic event when their [DuplicateKey]
// matches: account, date, amount, description and currency. A row is a
// duplicate if the store already holds such a transaction for the tenant or
// an earlier row of the same file produced the same key.
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each error category has a unique code for support reference:
//
//   - DB001-DB007: Database errors (duplicates, constraints, connections)
//   - FILE001-FILE007: File errors (size, encoding, format)
//   - HDR001: Missing required column
//   - IMP001-IMP002: Import errors (tenant, history)
//   - RATE001: Too many requests from one client
//   - UPL002-UPL005: Request errors (busy, cancelled, timeout)
package core
