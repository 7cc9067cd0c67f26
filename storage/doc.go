// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package storage provides the persistence layer for docstage.
//
// The staging log is the durable record of every embedded chunk. It is
// append-only: each ingestion run appends one record per chunk and nothing is
// ever rewritten. Two backends implement StagingLog:
//
//   - storage/filelog: a JSON Lines file guarded by an exclusive file lock
//   - storage/badger: a BadgerDB keyspace with sequence-ordered keys
//
// storage/badger also provides an embedded index.Collection so a complete
// pipeline can run without an external index server.
//
// # Constructor Return Type Pattern
//
// Public constructors return interfaces:
//
//	log, err := filelog.Open(path)  // returns storage.StagingLog
//
// # Thread Safety
//
// All implementations are safe for concurrent use. Appends from separate
// processes are serialised by the backend (file lock or transaction).
package storage
