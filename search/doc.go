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


// Package search runs a fixed list of semantic queries against an index
// collection and records the ranked answers.
//
// A Runner embeds each query, asks the collection for its nearest entries and
// assembles one core.AnswerResult per query, in query order. Answers are
// persisted as JSON Lines with WriteAnswers.
package search
