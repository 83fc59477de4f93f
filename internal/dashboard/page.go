package dashboard

// indexPage is the single-page operations view. It connects back over the
// websocket and re-renders on every snapshot.
const indexPage = `
<!DOCTYPE html>
<html>
<head>
    <title>DonorSense - Operations</title>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <style>
        body { font-family: 'Segoe UI', Tahoma, Geneva, Verdana, sans-serif; margin: 0; padding: 20px; background-color: #f5f5f5; }
        .container { max-width: 1400px; margin: 0 auto; }
        .header { background: linear-gradient(135deg, #11998e 0%, #38ef7d 100%); color: white; padding: 20px; border-radius: 10px; margin-bottom: 20px; }
        .header h1 { margin: 0; font-size: 2.2em; text-align: center; }
        .status-bar { display: flex; justify-content: space-between; align-items: center; background: white; padding: 15px; border-radius: 8px; margin-bottom: 20px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        .status-indicator { display: flex; align-items: center; font-weight: bold; }
        .status-dot { width: 12px; height: 12px; border-radius: 50%; margin-right: 8px; }
        .status-active { background-color: #28a745; }
        .status-warning { background-color: #ffc107; }
        .status-danger { background-color: #dc3545; }
        .grid { display: grid; grid-template-columns: repeat(auto-fit, minmax(320px, 1fr)); gap: 20px; }
        .card { background: white; border-radius: 10px; padding: 20px; box-shadow: 0 4px 6px rgba(0,0,0,0.1); }
        .card h3 { margin-top: 0; color: #333; border-bottom: 2px solid #eee; padding-bottom: 10px; }
        .card-wide { grid-column: 1 / -1; }
        .metric { display: flex; justify-content: space-between; align-items: center; padding: 8px 0; border-bottom: 1px solid #eee; }
        .metric:last-child { border-bottom: none; }
        .metric-label { font-weight: 500; color: #666; }
        .metric-value { font-weight: bold; color: #333; }
        .metric-positive { color: #28a745; }
        .metric-negative { color: #dc3545; }
        .metric-warning { color: #ffc107; }
        .data-table { width: 100%; border-collapse: collapse; margin-top: 10px; }
        .data-table th, .data-table td { text-align: left; padding: 8px; border-bottom: 1px solid #eee; font-size: 0.9em; }
        .data-table th { background-color: #f8f9fa; font-weight: 600; }
        .badge { padding: 2px 8px; border-radius: 4px; font-size: 0.8em; font-weight: bold; }
        .sev-low { background-color: #28a745; color: white; }
        .sev-medium { background-color: #ffc107; color: #333; }
        .sev-high { background-color: #dc3545; color: white; }
        .job-queued { background-color: #17a2b8; color: white; }
        .job-completed { background-color: #28a745; color: white; }
        .job-failed { background-color: #dc3545; color: white; }
        .empty-note { text-align: center; color: #666; }
        @keyframes pulse { 0% { opacity: 1; } 50% { opacity: 0.5; } 100% { opacity: 1; } }
        .pulsing { animation: pulse 2s infinite; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>DonorSense Operations</h1>
        </div>

        <div class="status-bar">
            <div class="status-indicator">
                <div class="status-dot" id="engine-status"></div>
                <span id="engine-status-text">Connecting...</span>
            </div>
            <div class="status-indicator">
                <span id="last-update">Last Updated: --</span>
            </div>
        </div>

        <div class="grid">
            <div class="card">
                <h3>Model Registry</h3>
                <div class="metric">
                    <span class="metric-label">Total Models</span>
                    <span class="metric-value" id="models-total">0</span>
                </div>
                <div class="metric">
                    <span class="metric-label">Active</span>
                    <span class="metric-value metric-positive" id="models-active">0</span>
                </div>
                <div class="metric">
                    <span class="metric-label">Needs Retraining</span>
                    <span class="metric-value" id="models-retraining">0</span>
                </div>
                <div class="metric">
                    <span class="metric-label">Retired</span>
                    <span class="metric-value" id="models-retired">0</span>
                </div>
                <div class="metric">
                    <span class="metric-label">Oldest Model Age</span>
                    <span class="metric-value" id="models-oldest">--</span>
                </div>
            </div>

            <div class="card">
                <h3>Models by Type</h3>
                <table class="data-table">
                    <tbody id="types-table-body">
                        <tr><td class="empty-note">No models registered</td></tr>
                    </tbody>
                </table>
            </div>

            <div class="card">
                <h3>Monitoring</h3>
                <div class="metric">
                    <span class="metric-label">Last Pass</span>
                    <span class="metric-value" id="pass-time">never</span>
                </div>
                <div class="metric">
                    <span class="metric-label">Models Evaluated</span>
                    <span class="metric-value" id="pass-evaluated">0</span>
                </div>
                <div class="metric">
                    <span class="metric-label">Evaluation Failures</span>
                    <span class="metric-value" id="pass-failed">0</span>
                </div>
            </div>

            <div class="card">
                <h3>Donation Stream</h3>
                <div class="metric">
                    <span class="metric-label">Configured</span>
                    <span class="metric-value" id="stream-configured">no</span>
                </div>
                <div class="metric">
                    <span class="metric-label">Connected</span>
                    <span class="metric-value" id="stream-connected">no</span>
                </div>
                <div class="metric">
                    <span class="metric-label">Last Event</span>
                    <span class="metric-value" id="stream-last-event">--</span>
                </div>
            </div>

            <div class="card">
                <h3>Training Queue</h3>
                <div class="metric">
                    <span class="metric-label">Queue Depth</span>
                    <span class="metric-value" id="queue-depth">0</span>
                </div>
                <table class="data-table">
                    <thead>
                        <tr><th>State</th><th>Type</th><th>Algorithm</th><th>Submitted</th></tr>
                    </thead>
                    <tbody id="jobs-table-body">
                        <tr><td colspan="4" class="empty-note">No training jobs</td></tr>
                    </tbody>
                </table>
            </div>

            <div class="card card-wide">
                <h3>Recent Alerts</h3>
                <table class="data-table">
                    <thead>
                        <tr><th>Severity</th><th>Model</th><th>Type</th><th>Message</th><th>Raised</th></tr>
                    </thead>
                    <tbody id="alerts-table-body">
                        <tr><td colspan="5" class="empty-note">No recent alerts</td></tr>
                    </tbody>
                </table>
            </div>
        </div>
    </div>

    <script>
        var ws = new WebSocket('ws://' + location.host + '/ws');

        ws.onmessage = function(event) {
            updateDashboard(JSON.parse(event.data));
        };

        ws.onclose = function() {
            setTimeout(function() { location.reload(); }, 5000);
        };

        function setText(id, value) {
            document.getElementById(id).textContent = value;
        }

        function fmtTime(iso) {
            if (!iso) { return '--'; }
            return new Date(iso).toLocaleTimeString();
        }

        function timeAgo(iso) {
            if (!iso) { return '--'; }
            var secs = Math.floor((Date.now() - new Date(iso).getTime()) / 1000);
            if (secs < 60) { return secs + 's ago'; }
            if (secs < 3600) { return Math.floor(secs / 60) + 'm ago'; }
            if (secs < 86400) { return Math.floor(secs / 3600) + 'h ago'; }
            return Math.floor(secs / 86400) + 'd ago';
        }

        function cell(text) {
            var td = document.createElement('td');
            td.textContent = text;
            return td;
        }

        function badgeCell(text, cls) {
            var td = document.createElement('td');
            var span = document.createElement('span');
            span.className = 'badge ' + cls;
            span.textContent = text.toUpperCase();
            td.appendChild(span);
            return td;
        }

        function emptyRow(tbody, cols, note) {
            tbody.innerHTML = '';
            var tr = document.createElement('tr');
            var td = cell(note);
            td.colSpan = cols;
            td.className = 'empty-note';
            tr.appendChild(td);
            tbody.appendChild(tr);
        }

        function updateDashboard(data) {
            setText('last-update', 'Last Updated: ' + fmtTime(data.generated_at));

            var byStatus = data.registry.by_status || {};
            var active = byStatus.active || 0;
            var retraining = byStatus.needs_retraining || 0;
            setText('models-total', data.registry.total);
            setText('models-active', active);
            setText('models-retraining', retraining);
            setText('models-retired', byStatus.retired || 0);
            setText('models-oldest', data.registry.total > 0 ? data.registry.oldest_age_days.toFixed(1) + ' days' : '--');

            var retrainEl = document.getElementById('models-retraining');
            retrainEl.className = 'metric-value' + (retraining > 0 ? ' metric-warning' : '');

            renderTypes(data.registry.by_type || {});
            renderQueue(data.queue);
            renderPass(data.last_monitor_pass);
            renderStream(data.stream);

            var alerts = data.alerts || [];
            renderAlerts(alerts);
            renderEngineStatus(alerts, retraining);
        }

        function renderEngineStatus(alerts, retraining) {
            var dot = document.getElementById('engine-status');
            var highCount = 0;
            for (var i = 0; i < alerts.length; i++) {
                if (alerts[i].severity === 'high') { highCount++; }
            }
            if (highCount > 0) {
                dot.className = 'status-dot status-danger pulsing';
                setText('engine-status-text', 'Action Required: ' + highCount + ' high severity alert(s)');
            } else if (alerts.length > 0 || retraining > 0) {
                dot.className = 'status-dot status-warning';
                setText('engine-status-text', 'Attention Needed');
            } else {
                dot.className = 'status-dot status-active';
                setText('engine-status-text', 'Healthy');
            }
        }

        function renderTypes(byType) {
            var tbody = document.getElementById('types-table-body');
            var keys = Object.keys(byType);
            if (keys.length === 0) {
                emptyRow(tbody, 2, 'No models registered');
                return;
            }
            tbody.innerHTML = '';
            keys.sort();
            for (var i = 0; i < keys.length; i++) {
                var tr = document.createElement('tr');
                tr.appendChild(cell(keys[i].replace(/_/g, ' ')));
                tr.appendChild(cell(byType[keys[i]]));
                tbody.appendChild(tr);
            }
        }

        function renderQueue(queue) {
            setText('queue-depth', queue.depth);
            var tbody = document.getElementById('jobs-table-body');
            var jobs = queue.jobs || [];
            if (jobs.length === 0) {
                emptyRow(tbody, 4, 'No training jobs');
                return;
            }
            jobs.sort(function(a, b) { return new Date(b.submitted_at) - new Date(a.submitted_at); });
            tbody.innerHTML = '';
            for (var i = 0; i < Math.min(jobs.length, 8); i++) {
                var job = jobs[i];
                var tr = document.createElement('tr');
                tr.appendChild(badgeCell(job.state, 'job-' + job.state));
                tr.appendChild(cell(job.type.replace(/_/g, ' ')));
                tr.appendChild(cell(job.algorithm.replace(/_/g, ' ')));
                tr.appendChild(cell(timeAgo(job.submitted_at)));
                tbody.appendChild(tr);
            }
        }

        function renderPass(pass) {
            if (!pass) {
                setText('pass-time', 'never');
                setText('pass-evaluated', 0);
                setText('pass-failed', 0);
                return;
            }
            setText('pass-time', timeAgo(pass.completed_at));
            setText('pass-evaluated', pass.evaluated);
            setText('pass-failed', pass.failed);
            var failedEl = document.getElementById('pass-failed');
            failedEl.className = 'metric-value' + (pass.failed > 0 ? ' metric-negative' : '');
        }

        function renderStream(stream) {
            setText('stream-configured', stream.configured ? 'yes' : 'no');
            var connectedEl = document.getElementById('stream-connected');
            connectedEl.textContent = stream.connected ? 'yes' : 'no';
            connectedEl.className = 'metric-value ' +
                (stream.connected ? 'metric-positive' : (stream.configured ? 'metric-negative' : ''));
            setText('stream-last-event', stream.last_event_at ? timeAgo(stream.last_event_at) : '--');
        }

        function renderAlerts(alerts) {
            var tbody = document.getElementById('alerts-table-body');
            if (alerts.length === 0) {
                emptyRow(tbody, 5, 'No recent alerts');
                return;
            }
            tbody.innerHTML = '';
            for (var i = 0; i < alerts.length; i++) {
                var a = alerts[i];
                var tr = document.createElement('tr');
                tr.appendChild(badgeCell(a.severity, 'sev-' + a.severity));
                tr.appendChild(cell(a.model_id));
                tr.appendChild(cell(a.type.replace(/_/g, ' ')));
                tr.appendChild(cell(a.message));
                tr.appendChild(cell(timeAgo(a.created_at)));
                tbody.appendChild(tr);
            }
        }
    </script>
</body>
</html>
`
