package toolbox

//
//Copyright 2019 Telenor Digital AS
//
//Licensed under the Apache License, Version 2.0 (the "License");
//you may not use this file except in compliance with the License.
//You may obtain a copy of the License at
//
//http://www.apache.org/licenses/LICENSE-2.0
//
//Unless required by applicable law or agreed to in writing, software
//distributed under the License is distributed on an "AS IS" BASIS,
//WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//See the License for the specific language governing permissions and
//limitations under the License.
//
import (
	"time"

	log "github.com/sirupsen/logrus"
)

// TimeCall runs the function and logs the elapsed time at debug level with
// the description as the "call" field. The elapsed time is returned.
func TimeCall(call func(), description string) time.Duration {
	start := time.Now()
	call()
	elapsed := time.Since(start)
	log.WithFields(log.Fields{
		"call":    description,
		"elapsed": elapsed.String(),
	}).Debug("Timed call completed")
	return elapsed
}
